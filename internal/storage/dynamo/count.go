package dynamo

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MadlinksCoding/modstore/internal/moderr"
	"github.com/MadlinksCoding/modstore/internal/storage"
	"github.com/MadlinksCoding/modstore/internal/types"
)

// CountModerationItemsByStatus counts the items in one status, or across
// every status when status is "all". Soft-deleted items are never counted.
// The count pages through COUNT selects until the key space is exhausted,
// bounded by the pagination iteration ceiling.
func (e *Engine) CountModerationItemsByStatus(ctx context.Context, status string, filter types.CountFilter) (int64, error) {
	const origin = "countModerationItemsByStatus"

	st := types.Status(status)
	all := status == types.StatusAll
	if !all && !st.IsValid() {
		return 0, moderr.Report(e.sink, moderr.New(moderr.KindInvalidEnum, origin,
			fmt.Sprintf("invalid status %q", status)).
			WithData(map[string]any{"status": status}))
	}

	names := map[string]string{"#isDeleted": attrIsDeleted}
	values := map[string]any{":notDeleted": false}
	conjuncts := []string{"#isDeleted = :notDeleted"}

	var (
		indexName    string
		keyCondition string
		scan         bool
	)
	switch {
	case !all:
		indexName = IndexStatusDate
		names["#status"] = attrStatus
		values[":status"] = status
		keyCondition = "#status = :status"
		if filter.UserID != "" {
			names["#userId"] = attrUserID
			values[":userId"] = filter.UserID
			conjuncts = append(conjuncts, "#userId = :userId")
		}
	case filter.UserID != "":
		indexName = IndexUserStatusDate
		names["#userId"] = attrUserID
		values[":userId"] = filter.UserID
		keyCondition = "#userId = :userId"
	default:
		scan = true
	}

	if filter.ModeratedBy != "" {
		names["#moderatedBy"] = attrModeratedBy
		values[":moderatedBy"] = filter.ModeratedBy
		conjuncts = append(conjuncts, "#moderatedBy = :moderatedBy")
	}
	if filter.UnmoderatedOnly {
		names["#moderatedBy"] = attrModeratedBy
		conjuncts = append(conjuncts, "attribute_not_exists(#moderatedBy)")
	}
	if filter.HasRejectionHistory {
		names["#reason"] = attrReason
		conjuncts = append(conjuncts, "attribute_exists(#reason)")
	}
	filterExpr := strings.Join(conjuncts, " AND ")

	var (
		total    int64
		startKey map[string]any
	)
	for iterations := 0; ; iterations++ {
		if iterations >= e.cfg.MaxPaginationIterations {
			return 0, moderr.Report(e.sink, moderr.New(moderr.KindPaginationLimitExceeded, origin,
				fmt.Sprintf("count exceeded %d pagination iterations", e.cfg.MaxPaginationIterations)).
				WithData(map[string]any{"status": status, "iterations": iterations}))
		}
		var (
			page *storage.Page
			err  error
		)
		if scan {
			err = e.withRetry(ctx, origin, func() error {
				var serr error
				page, serr = e.drv.Scan(ctx, &storage.ScanInput{
					TableName:                 e.cfg.TableName,
					FilterExpression:          filterExpr,
					ExpressionAttributeNames:  names,
					ExpressionAttributeValues: values,
					ExclusiveStartKey:         startKey,
					Select:                    storage.SelectCount,
				})
				return serr
			})
		} else {
			err = e.withRetry(ctx, origin, func() error {
				var qerr error
				page, qerr = e.drv.Query(ctx, &storage.QueryInput{
					TableName:                 e.cfg.TableName,
					IndexName:                 indexName,
					KeyConditionExpression:    keyCondition,
					FilterExpression:          filterExpr,
					ExpressionAttributeNames:  names,
					ExpressionAttributeValues: values,
					ExclusiveStartKey:         startKey,
					Select:                    storage.SelectCount,
				})
				return qerr
			})
		}
		if err != nil {
			return 0, e.storageErr(origin, "count query failed", err, "")
		}
		total += int64(page.Count)
		startKey = page.LastEvaluatedKey
		if startKey == nil {
			return total, nil
		}
	}
}

// GetAllModerationCounts gathers the per-status counts concurrently, plus
// the unmoderated backlog (pending items with no moderator attribution).
// The pending_resubmission count degrades to zero when its query fails;
// deployments predating that status have no rows to count and the overall
// snapshot is still useful. Any other failure fails the whole call.
func (e *Engine) GetAllModerationCounts(ctx context.Context) (*types.ModerationCounts, error) {
	const origin = "getAllModerationCounts"

	counts := &types.ModerationCounts{}
	slots := map[types.Status]*int64{
		types.StatusPending:             &counts.Pending,
		types.StatusApproved:            &counts.Approved,
		types.StatusApprovedGlobal:      &counts.ApprovedGlobal,
		types.StatusRejected:            &counts.Rejected,
		types.StatusEscalated:           &counts.Escalated,
		types.StatusPendingResubmission: &counts.PendingResubmission,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, status := range types.AllStatuses {
		status := status
		slot := slots[status]
		g.Go(func() error {
			n, err := e.CountModerationItemsByStatus(gctx, string(status), types.CountFilter{})
			if err != nil {
				if status == types.StatusPendingResubmission {
					moderr.Report(e.sink, moderr.Wrap(moderr.KindCountsFailed, origin,
						"pending_resubmission count unavailable, reporting zero", err))
					return nil
				}
				return err
			}
			*slot = n
			return nil
		})
	}
	g.Go(func() error {
		n, err := e.CountModerationItemsByStatus(gctx, string(types.StatusPending),
			types.CountFilter{UnmoderatedOnly: true})
		if err != nil {
			return err
		}
		counts.Unmoderated = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, moderr.Report(e.sink, moderr.Wrap(moderr.KindCountsFailed, origin,
			"counts aggregation failed", err))
	}
	counts.All = counts.Pending + counts.Approved + counts.ApprovedGlobal +
		counts.Rejected + counts.Escalated + counts.PendingResubmission
	return counts, nil
}
