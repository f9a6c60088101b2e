package dynamo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MadlinksCoding/modstore/internal/moderr"
	"github.com/MadlinksCoding/modstore/internal/sanitize"
	"github.com/MadlinksCoding/modstore/internal/types"
)

// QueryPlan is the compiled form of a QueryFilter: the chosen index, the
// key condition, and the residual filter expression. Plans are pure data;
// building one performs no I/O.
type QueryPlan struct {
	// IndexName is empty for base-table scans.
	IndexName    string
	KeyCondition string
	Filter       string
	Names        map[string]string
	Values       map[string]any
	Scan         bool

	// Phases holds per-phase value overrides applied on top of Values.
	// Most plans have exactly one phase; a gallery-family type query has
	// two, one per stored alias token.
	Phases []map[string]any

	// GalleryFilter keeps only gallery-family items after decode. It is
	// set when the alias family is a residual constraint: equality on one
	// stored token would silently miss the other, and the filter grammar
	// has no disjunction.
	GalleryFilter bool
}

func (p *QueryPlan) name(placeholder, attr string) string {
	if p.Names == nil {
		p.Names = map[string]string{}
	}
	p.Names[placeholder] = attr
	return placeholder
}

func (p *QueryPlan) value(placeholder string, v any) string {
	if p.Values == nil {
		p.Values = map[string]any{}
	}
	p.Values[placeholder] = v
	return placeholder
}

// BuildQueryPlan selects the cheapest index for a filter set and compiles
// the expressions. Selection priority:
//
//  1. userId (+ optional status) .. UserStatusDate
//  2. status ..................... StatusDate
//  3. moderatedBy ................ ModeratedBy
//  4. contentId .................. ContentId
//  5. escalatedBy ................ Escalated
//  6. priority ................... Priority
//  7. type ....................... TypeDate
//  8. dayKey ..................... AllByDate
//  9. nothing .................... base-table scan
//
// Constraints not absorbed by the key condition become the filter
// expression, joined with AND. submittedAt ranges ride the key condition
// only when the chosen range key is submittedAt.
func BuildQueryPlan(f types.QueryFilter) (*QueryPlan, error) {
	p := &QueryPlan{Phases: []map[string]any{nil}}

	status := types.Status(f.Status)
	hasStatus := f.Status != "" && f.Status != types.StatusAll
	if hasStatus && !status.IsValid() {
		return nil, moderr.New(moderr.KindInvalidEnum, "buildQueryPlan",
			fmt.Sprintf("invalid status %q", f.Status)).
			WithData(map[string]any{"status": f.Status})
	}
	if f.Priority != "" && !f.Priority.IsValid() {
		return nil, moderr.New(moderr.KindInvalidEnum, "buildQueryPlan",
			fmt.Sprintf("invalid priority %q", f.Priority)).
			WithData(map[string]any{"priority": string(f.Priority)})
	}
	if f.Type != "" && !f.Type.IsValid() {
		return nil, moderr.New(moderr.KindInvalidEnum, "buildQueryPlan",
			fmt.Sprintf("invalid type %q", f.Type)).
			WithData(map[string]any{"type": string(f.Type)})
	}
	if f.DayKey != "" {
		if err := sanitize.ValidateDayKey(f.DayKey); err != nil {
			return nil, err
		}
	}

	var (
		userInKey, statusInKey, rangeInKey               bool
		moderatedByInKey, contentIDInKey, escalatedInKey bool
		priorityInKey, typeInKey, dayKeyInKey            bool
	)

	switch {
	case f.UserID != "":
		p.IndexName = IndexUserStatusDate
		p.KeyCondition = fmt.Sprintf("%s = %s",
			p.name("#userId", attrUserID), p.value(":userId", f.UserID))
		userInKey = true
		if hasStatus {
			statusInKey = true
			ssa := p.name("#statusSubmittedAt", attrStatusSubmittedAt)
			switch {
			case f.Start != nil || f.End != nil:
				rangeInKey = true
				lower := string(status) + types.KeySeparator
				upper := string(status) + types.KeySeparator + "~" // '~' sorts after every digit
				if f.Start != nil {
					lower = types.BuildStatusSubmittedAt(status, *f.Start)
				}
				if f.End != nil {
					upper = types.BuildStatusSubmittedAt(status, *f.End)
				}
				p.KeyCondition += fmt.Sprintf(" AND %s BETWEEN %s AND %s",
					ssa, p.value(":ssaLower", lower), p.value(":ssaUpper", upper))
			default:
				p.KeyCondition += fmt.Sprintf(" AND begins_with(%s, %s)",
					ssa, p.value(":ssaPrefix", string(status)+types.KeySeparator))
			}
		}
	case hasStatus:
		p.IndexName = IndexStatusDate
		p.KeyCondition = fmt.Sprintf("%s = %s",
			p.name("#status", attrStatus), p.value(":status", string(status)))
		statusInKey = true
		rangeInKey = p.addSubmittedAtRange(f)
	case f.ModeratedBy != "":
		p.IndexName = IndexModeratedBy
		p.KeyCondition = fmt.Sprintf("%s = %s",
			p.name("#moderatedBy", attrModeratedBy), p.value(":moderatedBy", f.ModeratedBy))
		moderatedByInKey = true
	case f.ContentID != "":
		p.IndexName = IndexContentID
		p.KeyCondition = fmt.Sprintf("%s = %s",
			p.name("#contentId", attrContentID), p.value(":contentId", f.ContentID))
		contentIDInKey = true
		rangeInKey = p.addSubmittedAtRange(f)
	case f.EscalatedBy != "":
		p.IndexName = IndexEscalated
		p.KeyCondition = fmt.Sprintf("%s = %s",
			p.name("#escalatedBy", attrEscalatedBy), p.value(":escalatedBy", f.EscalatedBy))
		escalatedInKey = true
	case f.Priority != "":
		p.IndexName = IndexPriority
		p.KeyCondition = fmt.Sprintf("%s = %s",
			p.name("#priority", attrPriority), p.value(":priority", string(f.Priority)))
		priorityInKey = true
		rangeInKey = p.addSubmittedAtRange(f)
	case f.Type != "":
		p.IndexName = IndexTypeDate
		p.KeyCondition = fmt.Sprintf("%s = %s",
			p.name("#type", attrType), p.value(":type", string(f.Type)))
		typeInKey = true
		rangeInKey = p.addSubmittedAtRange(f)
		if alias := f.Type.GalleryAlias(); alias != "" {
			// Both stored alias tokens, queried as sequential phases.
			p.Phases = []map[string]any{
				{":type": string(f.Type)},
				{":type": string(alias)},
			}
		}
	case f.DayKey != "":
		p.IndexName = IndexAllByDate
		p.KeyCondition = fmt.Sprintf("%s = %s",
			p.name("#dayKey", attrDayKey), p.value(":dayKey", f.DayKey))
		dayKeyInKey = true
		rangeInKey = p.addSubmittedAtRange(f)
	default:
		p.Scan = true
	}

	var conjuncts []string
	add := func(expr string) { conjuncts = append(conjuncts, expr) }

	if !f.IncludeDeleted {
		add(fmt.Sprintf("%s = %s",
			p.name("#isDeleted", attrIsDeleted), p.value(":notDeleted", false)))
	}
	if f.UserID != "" && !userInKey {
		add(fmt.Sprintf("%s = %s",
			p.name("#userId", attrUserID), p.value(":userId", f.UserID)))
	}
	if hasStatus && !statusInKey {
		add(fmt.Sprintf("%s = %s",
			p.name("#status", attrStatus), p.value(":status", string(status))))
	}
	if f.ModeratedBy != "" && !moderatedByInKey {
		add(fmt.Sprintf("%s = %s",
			p.name("#moderatedBy", attrModeratedBy), p.value(":moderatedBy", f.ModeratedBy)))
	}
	if f.ContentID != "" && !contentIDInKey {
		add(fmt.Sprintf("%s = %s",
			p.name("#contentId", attrContentID), p.value(":contentId", f.ContentID)))
	}
	if f.EscalatedBy != "" && !escalatedInKey {
		add(fmt.Sprintf("%s = %s",
			p.name("#escalatedBy", attrEscalatedBy), p.value(":escalatedBy", f.EscalatedBy)))
	}
	if f.Priority != "" && !priorityInKey {
		add(fmt.Sprintf("%s = %s",
			p.name("#priority", attrPriority), p.value(":priority", string(f.Priority))))
	}
	if f.Type != "" && !typeInKey {
		if f.Type.IsGalleryFamily() {
			p.GalleryFilter = true
		} else {
			add(fmt.Sprintf("%s = %s",
				p.name("#type", attrType), p.value(":type", string(f.Type))))
		}
	}
	if f.DayKey != "" && !dayKeyInKey {
		add(fmt.Sprintf("%s = %s",
			p.name("#dayKey", attrDayKey), p.value(":dayKey", f.DayKey)))
	}
	if !rangeInKey {
		if expr := p.submittedAtRangeExpr(f); expr != "" {
			add(expr)
		}
	}
	p.Filter = strings.Join(conjuncts, " AND ")
	return p, nil
}

// addSubmittedAtRange appends the submittedAt range to the key condition
// when the chosen index sorts on submittedAt. Reports whether a range was
// absorbed.
func (p *QueryPlan) addSubmittedAtRange(f types.QueryFilter) bool {
	expr := p.submittedAtRangeExpr(f)
	if expr == "" {
		return false
	}
	p.KeyCondition += " AND " + expr
	return true
}

func (p *QueryPlan) submittedAtRangeExpr(f types.QueryFilter) string {
	sa := func() string { return p.name("#submittedAt", attrSubmittedAt) }
	switch {
	case f.Start != nil && f.End != nil:
		return fmt.Sprintf("%s BETWEEN %s AND %s",
			sa(), p.value(":start", *f.Start), p.value(":end", *f.End))
	case f.Start != nil:
		return fmt.Sprintf("%s >= %s", sa(), p.value(":start", *f.Start))
	case f.End != nil:
		return fmt.Sprintf("%s <= %s", sa(), p.value(":end", *f.End))
	}
	return ""
}

// String renders the plan for debug logs.
func (p *QueryPlan) String() string {
	target := p.IndexName
	if p.Scan {
		target = "scan"
	}
	return "index=" + target +
		" key=" + p.KeyCondition +
		" filter=" + p.Filter +
		" phases=" + strconv.Itoa(len(p.Phases))
}
