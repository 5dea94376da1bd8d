package refresh

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/doc-outline/pkg/config"
	"github.com/Sriram-PR/doc-outline/pkg/models"
	"github.com/Sriram-PR/doc-outline/pkg/storage"
	"github.com/Sriram-PR/doc-outline/pkg/utils"
)

// Outcome is what a refresh did to a source's stored outline
type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"   // New content, outline stored
	OutcomeUnchanged Outcome = "unchanged" // Content hash matches the stored outline
	OutcomeFailed    Outcome = "failed"    // Load failed; previous outline kept
)

// SourceResult contains the result of refreshing a single source
type SourceResult struct {
	SourceKey string        `json:"source_key"`
	Outcome   Outcome       `json:"outcome"`
	Sections  int           `json:"sections"`
	ErrorType string        `json:"error_type,omitempty"`
	Err       error         `json:"-"`
	Duration  time.Duration `json:"duration"`
}

// DocumentLoader fetches a source and extracts its outline
type DocumentLoader interface {
	Load(ctx context.Context, sourceKey string, srcCfg config.SourceConfig) (*models.Document, error)
}

// Orchestrator refreshes many sources concurrently against one store
type Orchestrator struct {
	appCfg *config.AppConfig
	loader DocumentLoader
	store  storage.DocumentStore
	log    *logrus.Entry
	force  bool
}

// NewOrchestrator creates an orchestrator. With force set, unchanged content is stored again.
func NewOrchestrator(appCfg *config.AppConfig, loader DocumentLoader, store storage.DocumentStore, force bool, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		appCfg: appCfg,
		loader: loader,
		store:  store,
		log:    log,
		force:  force,
	}
}

// Run refreshes sourceKeys with at most max_concurrent_fetches loads in flight.
// Results are returned in the order of sourceKeys.
func (o *Orchestrator) Run(ctx context.Context, sourceKeys []string) []SourceResult {
	start := time.Now()
	results := make([]SourceResult, len(sourceKeys))

	var g errgroup.Group
	limit := o.appCfg.MaxConcurrentFetches
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, key := range sourceKeys {
		g.Go(func() error {
			results[i] = o.RefreshSource(ctx, key)
			return nil
		})
	}
	_ = g.Wait()

	o.logSummary(results, time.Since(start))
	return results
}

// RefreshSource loads one source and records the outcome in the store
func (o *Orchestrator) RefreshSource(ctx context.Context, sourceKey string) SourceResult {
	start := time.Now()
	srcLog := o.log.WithField("source", sourceKey)
	result := SourceResult{SourceKey: sourceKey}

	srcCfg, exists := o.appCfg.Sources[sourceKey]
	if !exists {
		return o.fail(result, fmt.Errorf("%w: '%s'", utils.ErrSourceNotFound, sourceKey), start, srcLog)
	}

	doc, err := o.loader.Load(ctx, sourceKey, srcCfg)
	if err != nil {
		return o.fail(result, err, start, srcLog)
	}
	result.Sections = len(doc.Sections)

	if !o.force {
		unchanged, err := o.unchanged(sourceKey, doc.ContentHash)
		if err != nil {
			return o.fail(result, err, start, srcLog)
		}
		if unchanged {
			result.Outcome = OutcomeUnchanged
			result.Duration = time.Since(start)
			srcLog.Debug("Content unchanged, keeping stored outline")
			return result
		}
	}

	entry := doc.Entry()
	if err := o.store.SaveDocument(&entry); err != nil {
		return o.fail(result, err, start, srcLog)
	}
	result.Outcome = OutcomeUpdated
	result.Duration = time.Since(start)
	srcLog.WithField("sections", result.Sections).Info("Outline updated")
	return result
}

// unchanged reports whether hash matches the stored outline and that outline
// is a success. A failure entry keeps the last good hash, so a source that
// recovers with identical content is still written to clear its failure.
func (o *Orchestrator) unchanged(sourceKey, hash string) (bool, error) {
	stored, exists, err := o.store.GetContentHash(sourceKey)
	if err != nil || !exists || stored != hash {
		return false, err
	}
	status, _, err := o.store.GetDocument(sourceKey)
	if err != nil {
		return false, err
	}
	return status == models.DocumentStatusSuccess, nil
}

// fail records a failed attempt. The previously stored outline and hash are kept.
func (o *Orchestrator) fail(result SourceResult, err error, start time.Time, srcLog *logrus.Entry) SourceResult {
	result.Outcome = OutcomeFailed
	result.Err = err
	result.ErrorType = utils.CategorizeError(err)
	result.Duration = time.Since(start)
	srcLog.WithField("error_type", result.ErrorType).Errorf("Refresh failed: %v", err)

	srcCfg, configured := o.appCfg.Sources[result.SourceKey]
	if !configured {
		return result
	}

	entry := &models.DocumentEntry{SourceKey: result.SourceKey, URL: srcCfg.URL, Title: srcCfg.Title}
	if _, prev, getErr := o.store.GetDocument(result.SourceKey); getErr == nil && prev != nil {
		entry = prev
	}
	entry.Status = models.DocumentStatusFailure
	entry.ErrorType = result.ErrorType
	entry.LastAttempt = time.Now().UTC()
	if saveErr := o.store.SaveDocument(entry); saveErr != nil {
		srcLog.Errorf("Recording failure: %v", saveErr)
	}
	return result
}

// logSummary logs a summary of all refresh results
func (o *Orchestrator) logSummary(results []SourceResult, total time.Duration) {
	counts := make(map[Outcome]int)
	for _, r := range results {
		counts[r.Outcome]++
		line := o.log.WithFields(logrus.Fields{"source": r.SourceKey, "outcome": r.Outcome, "sections": r.Sections, "duration": r.Duration})
		if r.Err != nil {
			line.WithField("error_type", r.ErrorType).Warn("Source refresh result")
		} else {
			line.Debug("Source refresh result")
		}
	}
	o.log.Infof("Refreshed %d sources in %v (%d updated, %d unchanged, %d failed)",
		len(results), total, counts[OutcomeUpdated], counts[OutcomeUnchanged], counts[OutcomeFailed])
}

// Failed reports whether any result failed
func Failed(results []SourceResult) bool {
	for _, r := range results {
		if r.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}

// ValidateSourceKeys checks that all provided source keys exist in the config
func ValidateSourceKeys(appCfg *config.AppConfig, sourceKeys []string) error {
	for _, key := range sourceKeys {
		if _, exists := appCfg.Sources[key]; !exists {
			return fmt.Errorf("%w: '%s'. Available sources: %v", utils.ErrSourceNotFound, key, GetAllSourceKeys(appCfg))
		}
	}
	return nil
}

// GetAllSourceKeys returns all source keys from the config, sorted
func GetAllSourceKeys(appCfg *config.AppConfig) []string {
	keys := make([]string, 0, len(appCfg.Sources))
	for k := range appCfg.Sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
