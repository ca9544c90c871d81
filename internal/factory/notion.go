package factory

import (
	"github.com/rs/zerolog"

	"github.com/bondcrm/notionsync/internal/config"
	"github.com/bondcrm/notionsync/internal/notion"
	"github.com/bondcrm/notionsync/internal/resolution"
	"github.com/bondcrm/notionsync/internal/shardqueue"
)

// NewNotion builds the Notion client and a retriever over it.
func NewNotion(cfg *config.Config, log zerolog.Logger) (*notion.Client, *notion.Retriever) {
	client := notion.NewClient(notion.Config{
		BaseURL: cfg.NotionBaseURL,
		Version: cfg.NotionVersion,
		Timeout: cfg.NotionTimeout(),
	}, log)

	rc := notion.DefaultRetrieverConfig()
	rc.MaxRetries = cfg.NotionMaxRetries
	rc.MinInterval = cfg.NotionMinInterval()
	return client, notion.NewRetriever(client, rc, log)
}

// NewPatcher paces resolution writes at the same minimum interval as
// retrieval.
func NewPatcher(cfg *config.Config, client notion.PagePatcher) *notion.PacedPatcher {
	return notion.NewPacedPatcher(client, cfg.NotionMinInterval())
}

// NewExecutor returns the per-record resolution executor, or nil when
// RESOLVE_SHARDS is 0 and groups should run inline.
func NewExecutor(cfg *config.Config, log zerolog.Logger) *shardqueue.ShardExecutor {
	if cfg.ResolveShards == 0 {
		return nil
	}
	return shardqueue.NewShardExecutor(shardqueue.Config{
		Shards:        cfg.ResolveShards,
		Irrecoverable: resolution.Irrecoverable,
		RetryAfter:    resolution.RetryAfter,
		ErrorHandler: func(err error) {
			log.Warn().Err(err).Msg("resolution job failed")
		},
		Log: log,
	})
}
