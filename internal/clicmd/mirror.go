package clicmd

import (
	"context"

	"github.com/henry40408/lmb/internal/lmbconfig"
	"github.com/henry40408/lmb/internal/lmblog"
	"github.com/henry40408/lmb/internal/store"
	"github.com/henry40408/lmb/internal/store/mirror"
)

// wireStoreMirror installs the optional S3 durability mirror (§4.2's
// "Supplemental feature — optional S3 mirror") on st, if lmb.yaml's
// `store.s3` block is present. A construction failure is logged and
// otherwise ignored — the mirror is additive durability, never on a
// script's critical path.
func wireStoreMirror(st *store.Store, cfg *lmbconfig.Config, log *lmblog.Logger) {
	if cfg.Store.S3 == nil {
		return
	}
	m, err := mirror.New(context.Background(), mirror.Config{
		Enabled:      true,
		Bucket:       cfg.Store.S3.Bucket,
		Prefix:       cfg.Store.S3.Prefix,
		Region:       cfg.Store.S3.Region,
		Endpoint:     cfg.Store.S3.Endpoint,
		UsePathStyle: cfg.Store.S3.UsePathStyle,
		Source:       cfg.Store.S3.Source,
	}, log)
	if err != nil {
		log.Warn("store mirror setup failed", map[string]any{"error": err.Error()})
		return
	}
	st.SetAfterCommit(m.AfterCommit)
}
