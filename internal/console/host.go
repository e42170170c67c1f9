// Package console is the terminal stand-in for the back-office UI: it has a current route,
// turns input into user activity, and carries out navigations and hard redirects.
package console

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/hifat/mallow-sale-back-office-sub000/internal/session/service"
)

// Host owns the current route. It implements service.Navigator and gateway.Redirector.
type Host struct {
	out io.Writer

	mu    sync.Mutex
	route string
	ctrl  *service.Controller
}

// NewHost returns a Host writing notices to out, starting at route.
func NewHost(out io.Writer, route string) *Host {
	return &Host{out: out, route: route}
}

// Bind attaches the controller that a hard redirect re-hydrates. The controller is built
// with the Host as its Navigator, so it is bound after construction.
func (h *Host) Bind(ctrl *service.Controller) {
	h.mu.Lock()
	h.ctrl = ctrl
	h.mu.Unlock()
}

// Route returns the current route.
func (h *Host) Route() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.route
}

// Navigate is a soft, in-app route change.
func (h *Host) Navigate(route string) {
	h.mu.Lock()
	h.route = route
	h.mu.Unlock()
	fmt.Fprintf(h.out, "→ %s\n", route)
}

// HardRedirect is the equivalent of a full page load: the controller's in-memory state is
// thrown away and rebuilt from storage.
func (h *Host) HardRedirect(route string) {
	h.mu.Lock()
	h.route = route
	ctrl := h.ctrl
	h.mu.Unlock()
	fmt.Fprintf(h.out, "session expired, please sign in again\n→ %s\n", route)
	if ctrl == nil {
		return
	}
	ctrl.Reload(context.Background(), route)
}
