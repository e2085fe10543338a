package valkey

import "testing"

func TestKey_Namespaced(t *testing.T) {
	if got := Key("location:last:phone"); got != "neighborhelper:location:last:phone" {
		t.Errorf("Key = %q", got)
	}
}
