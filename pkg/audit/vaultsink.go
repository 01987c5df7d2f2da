package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/proxilion/grc-gateway/internal/obs"
	"github.com/proxilion/grc-gateway/pkg/vault"
	"go.uber.org/zap"
)

// VaultSink persists each record's full JSON encoding to S3-compatible
// object storage, keyed by correlation id, so auditctl can fetch and
// re-verify any past decision's evidence offline.
type VaultSink struct {
	Client *vault.Client
}

func NewVaultSink(c *vault.Client) *VaultSink { return &VaultSink{Client: c} }

func (v *VaultSink) Emit(ctx context.Context, rec Record) {
	if v.Client == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		obs.Logger(ctx).Warn("audit: vault marshal failed", zap.Error(err))
		return
	}
	key := fmt.Sprintf("records/%s.json", rec.CorrelationID)
	if _, err := v.Client.Store(ctx, key, data); err != nil {
		obs.Logger(ctx).Warn("audit: vault store failed", zap.Error(err), zap.String("key", key))
	}
}
