package invariant

import "testing"

func TestCheckPanicsInFatalMode(t *testing.T) {
	prev := SetFatal(true)
	t.Cleanup(func() { SetFatal(prev) })

	defer func() {
		if recover() == nil {
			t.Fatal("Check(false) did not panic in fatal mode")
		}
	}()
	Check(false, "value %d", 3)
}

func TestCheckLogsOtherwise(t *testing.T) {
	prev := SetFatal(false)
	t.Cleanup(func() { SetFatal(prev) })

	Check(false, "non fatal")
	Check(true, "never reported")
}
