// ABOUTME: User binder that records session activity on every accepted request
// ABOUTME: Updates last-used time in the session store before the request proceeds

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/hawkgate/internal/hawk"
	"github.com/2389/hawkgate/internal/session"
)

// touchBinder marks the session as used. The gateway has no user model of its
// own, so the session id is the identity.
type touchBinder struct {
	store  session.Store
	logger *slog.Logger
	now    func() time.Time
}

func (b *touchBinder) BindUser(ctx context.Context, w http.ResponseWriter, r *http.Request, cred *hawk.Credential) (context.Context, error) {
	now := time.Now
	if b.now != nil {
		now = b.now
	}
	if err := b.store.Touch(ctx, cred.ID, now().UTC()); err != nil {
		return nil, fmt.Errorf("touching session: %w", err)
	}
	b.logger.Debug("session bound", "session", cred)
	return ctx, nil
}
