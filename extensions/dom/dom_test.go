package dom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeHost struct {
	page, pages int
	alerts      []string
	blocked     []string
}

func (h *fakeHost) CurrentPage() int { return h.page }
func (h *fakeHost) TotalPages() int  { return h.pages }

func (h *fakeHost) GoTo(n int) bool {
	if n < 1 || n > h.pages || n == h.page {
		return false
	}
	h.page = n
	return true
}

func (h *fakeHost) Alert(message string) { h.alerts = append(h.alerts, message) }

func (h *fakeHost) Blocked(action string) bool {
	h.blocked = append(h.blocked, action)
	return true
}

func TestAdapter_PageNumbering(t *testing.T) {
	host := &fakeHost{page: 1, pages: 3}
	adapter := New(host)

	if got := adapter.PageNum(); got != 0 {
		t.Fatalf("PageNum on the first page = %d", got)
	}
	if !adapter.SetPageNum(2) || host.page != 3 {
		t.Fatalf("SetPageNum(2) moved to page %d", host.page)
	}
	if adapter.SetPageNum(3) {
		t.Fatalf("SetPageNum past the end accepted")
	}
	if adapter.NumPages() != 3 {
		t.Fatalf("NumPages = %d", adapter.NumPages())
	}

	if (New(&fakeHost{})).PageNum() != 0 {
		t.Fatalf("PageNum without a document should be 0")
	}
}

func TestAdapter_Forwarding(t *testing.T) {
	host := &fakeHost{page: 1, pages: 1}
	adapter := New(host)
	adapter.Alert("hello")
	if !adapter.Request("print") {
		t.Fatalf("print request not suppressed")
	}
	if diff := cmp.Diff([]string{"hello"}, host.alerts); diff != "" {
		t.Fatalf("alerts (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"print"}, host.blocked); diff != "" {
		t.Fatalf("blocked (-want +got):\n%s", diff)
	}
}
