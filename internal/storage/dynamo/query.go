package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/MadlinksCoding/modstore/internal/codec"
	"github.com/MadlinksCoding/modstore/internal/moderr"
	"github.com/MadlinksCoding/modstore/internal/storage"
	"github.com/MadlinksCoding/modstore/internal/types"
)

// aliasPhaseKey marks which phase of a multi-phase plan a pagination token
// belongs to. It rides inside the token's last-key map and never reaches
// the driver.
const aliasPhaseKey = "_aliasPhase"

// GetModerationItems runs a planned query and returns one page of items.
//
// The driver applies Limit before the filter expression, so one storage
// query can come back short; the engine keeps issuing continuation queries
// until the page fills or the key space is exhausted, bounded by the
// pagination iteration ceiling. Soft-deleted items are excluded unless the
// filter says otherwise, and compressed content is inflated on the way out.
func (e *Engine) GetModerationItems(ctx context.Context, filter types.QueryFilter, opts types.QueryOptions) (*types.QueryResult, error) {
	const origin = "getModerationItems"

	limit, err := e.val.QueryLimit(opts.Limit)
	if err != nil {
		return nil, err
	}
	startKey, err := codec.DecodeToken(opts.NextToken, e.cfg.MaxTokenSize, e.cfg.TokenTTL, e.now())
	if err != nil {
		return nil, e.reportErr(err)
	}
	plan, err := BuildQueryPlan(filter)
	if err != nil {
		return nil, e.reportErr(err)
	}

	phase := 0
	if startKey != nil {
		if raw, ok := startKey[aliasPhaseKey]; ok {
			n, ok := asInt64(raw)
			if !ok || n < 1 || int(n) > len(plan.Phases) {
				return nil, moderr.Report(e.sink, moderr.New(moderr.KindPaginationTokenInvalid, origin,
					"pagination token phase marker is out of range"))
			}
			phase = int(n) - 1
			delete(startKey, aliasPhaseKey)
			if len(startKey) == 0 {
				startKey = nil
			}
		}
	}

	var (
		collected  []*types.ModerationItem
		iterations int
		nextToken  string
	)
	e.log.DebugLog(fmt.Sprintf("query plan: %s", plan))

pages:
	for ; phase < len(plan.Phases); phase++ {
		for {
			if iterations >= e.cfg.MaxPaginationIterations {
				return nil, moderr.Report(e.sink, moderr.New(moderr.KindPaginationLimitExceeded, origin,
					fmt.Sprintf("query exceeded %d pagination iterations", e.cfg.MaxPaginationIterations)).
					WithData(map[string]any{"iterations": iterations}))
			}
			iterations++

			page, err := e.runPlanPhase(ctx, origin, plan, phase, limit-len(collected), opts.Ascending, startKey)
			if err != nil {
				return nil, err
			}
			for _, raw := range page.Items {
				item, err := itemFromMap(raw)
				if err != nil {
					return nil, moderr.Report(e.sink, moderr.Wrap(moderr.KindContentCorrupted, origin,
						"stored item is malformed", err))
				}
				if plan.GalleryFilter && !item.Type.IsGalleryFamily() {
					continue
				}
				content, err := codec.Decompress(item.Content)
				if err != nil {
					return nil, e.reportErr(err)
				}
				item.Content = content
				collected = append(collected, item)
			}
			startKey = page.LastEvaluatedKey

			if len(collected) >= limit {
				switch {
				case startKey != nil:
					tok := make(map[string]any, len(startKey)+1)
					for k, v := range startKey {
						tok[k] = v
					}
					if len(plan.Phases) > 1 {
						tok[aliasPhaseKey] = int64(phase + 1)
					}
					nextToken = codec.EncodeToken(tok, e.now())
				case phase+1 < len(plan.Phases):
					nextToken = codec.EncodeToken(map[string]any{aliasPhaseKey: int64(phase + 2)}, e.now())
				}
				break pages
			}
			if startKey == nil {
				break // phase exhausted
			}
		}
	}

	return &types.QueryResult{
		Items:     collected,
		NextToken: nextToken,
		HasMore:   nextToken != "",
		Count:     len(collected),
	}, nil
}

// runPlanPhase issues one driver query (or scan) for a plan phase.
func (e *Engine) runPlanPhase(ctx context.Context, origin string, plan *QueryPlan, phase, limit int, ascending bool, startKey map[string]any) (*storage.Page, error) {
	values := plan.Values
	if overrides := plan.Phases[phase]; len(overrides) > 0 {
		values = make(map[string]any, len(plan.Values))
		for k, v := range plan.Values {
			values[k] = v
		}
		for k, v := range overrides {
			values[k] = v
		}
	}

	var (
		page *storage.Page
		err  error
	)
	if plan.Scan {
		err = e.withRetry(ctx, origin, func() error {
			var serr error
			page, serr = e.drv.Scan(ctx, &storage.ScanInput{
				TableName:                 e.cfg.TableName,
				FilterExpression:          plan.Filter,
				ExpressionAttributeNames:  plan.Names,
				ExpressionAttributeValues: values,
				Limit:                     limit,
				ExclusiveStartKey:         startKey,
			})
			return serr
		})
	} else {
		err = e.withRetry(ctx, origin, func() error {
			var qerr error
			page, qerr = e.drv.Query(ctx, &storage.QueryInput{
				TableName:                 e.cfg.TableName,
				IndexName:                 plan.IndexName,
				KeyConditionExpression:    plan.KeyCondition,
				FilterExpression:          plan.Filter,
				ExpressionAttributeNames:  plan.Names,
				ExpressionAttributeValues: values,
				Limit:                     limit,
				ScanIndexForward:          ascending,
				ExclusiveStartKey:         startKey,
			})
			return qerr
		})
	}
	if err != nil {
		return nil, e.storageErr(origin, "query failed", err, "")
	}
	return page, nil
}

// reportErr routes an already shaped store error through the sink.
func (e *Engine) reportErr(err error) error {
	var me *moderr.Error
	if errors.As(err, &me) {
		return moderr.Report(e.sink, me)
	}
	return err
}

// GetModerationItemsByStatus pages through one status across all users,
// or every status when status is "all".
func (e *Engine) GetModerationItemsByStatus(ctx context.Context, status string, opts types.QueryOptions) (*types.QueryResult, error) {
	return e.GetModerationItems(ctx, types.QueryFilter{Status: status}, opts)
}

// GetAllByDate pages through every item submitted on one UTC day.
func (e *Engine) GetAllByDate(ctx context.Context, dayKey string, opts types.QueryOptions) (*types.QueryResult, error) {
	return e.GetModerationItems(ctx, types.QueryFilter{DayKey: dayKey}, opts)
}

// GetUserModerationItemsByStatus pages through one user's items in one
// status; status "all" returns the user's full queue.
func (e *Engine) GetUserModerationItemsByStatus(ctx context.Context, userID, status string, opts types.QueryOptions) (*types.QueryResult, error) {
	return e.GetModerationItems(ctx, types.QueryFilter{UserID: userID, Status: status}, opts)
}

// GetModerationItemsByPriority pages through one priority band.
func (e *Engine) GetModerationItemsByPriority(ctx context.Context, priority types.Priority, opts types.QueryOptions) (*types.QueryResult, error) {
	return e.GetModerationItems(ctx, types.QueryFilter{Priority: priority}, opts)
}

// GetModerationItemsByType pages through one content type. Gallery-family
// types cover both stored alias tokens.
func (e *Engine) GetModerationItemsByType(ctx context.Context, contentType types.ContentType, opts types.QueryOptions) (*types.QueryResult, error) {
	return e.GetModerationItems(ctx, types.QueryFilter{Type: contentType}, opts)
}
