package translation

import (
	"context"

	"github.com/roach88/msync/internal/domain"
	"github.com/roach88/msync/internal/ir"
)

type legacyUnit struct {
	ID          string  `json:"ID"`
	Units       string  `json:"units"`
	Comment     *string `json:"comment"`
	OrderNumber int64   `json:"order_number"`
}

type unitTranslator struct{}

func (unitTranslator) Descriptor() Descriptor {
	return Descriptor{Table: TableUnit, Actions: upsertOnly}
}

func (unitTranslator) Translate(_ context.Context, _ *Context, env ir.Envelope) (Result, error) {
	var u legacyUnit
	if err := decodePayload(env, defUnit, &u); err != nil {
		return Result{}, err
	}
	row := domain.UnitRow{
		ID:          u.ID,
		Name:        u.Units,
		Description: nonEmpty(u.Comment),
		Index:       u.OrderNumber,
	}
	return Result{Ops: []ir.Op{ir.Upsert(row)}}, nil
}

type legacyItem struct {
	ID       string  `json:"ID"`
	ItemName string  `json:"item_name"`
	Code     string  `json:"code"`
	UnitID   *string `json:"unit_ID"`
	TypeOf   string  `json:"type_of"`
}

type itemTranslator struct{}

func (itemTranslator) Descriptor() Descriptor {
	return Descriptor{
		Table:        TableItem,
		Dependencies: []LegacyTable{TableUnit},
		Actions:      upsertMergeables,
	}
}

func (itemTranslator) Translate(ctx context.Context, tc *Context, env ir.Envelope) (Result, error) {
	if env.IsMerge() {
		return ResolveMerge(ctx, tc, domain.LinkItem, env)
	}

	var it legacyItem
	if err := decodePayload(env, defItem, &it); err != nil {
		return Result{}, err
	}
	typ, ok := legacyItemType(it.TypeOf)
	if !ok {
		return Result{}, newTranslationError(env, "unknown item type "+it.TypeOf, nil)
	}

	ops, err := identityLinkOps(ctx, tc, domain.LinkItem, it.ID)
	if err != nil {
		return Result{}, err
	}
	row := domain.ItemRow{
		ID:     it.ID,
		Name:   it.ItemName,
		Code:   it.Code,
		UnitID: nonEmpty(it.UnitID),
		Type:   typ,
	}
	return Result{Ops: append(ops, ir.Upsert(row))}, nil
}
