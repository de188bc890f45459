package translation

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/msync/internal/domain"
	"github.com/roach88/msync/internal/ir"
)

type legacyTransact struct {
	ID            string  `json:"ID"`
	NameID        string  `json:"name_ID"`
	StoreID       string  `json:"store_ID"`
	InvoiceNum    int64   `json:"invoice_num"`
	Type          string  `json:"type"`
	Status        string  `json:"status"`
	Hold          bool    `json:"hold"`
	Comment       *string `json:"comment"`
	TheirRef      *string `json:"their_ref"`
	EntryDate     string  `json:"entry_date"`
	EntryTime     int64   `json:"entry_time"`
	ConfirmDate   *string `json:"confirm_date"`
	FinalisedDate *string `json:"finalised_date"`
}

type transactTranslator struct{}

func (transactTranslator) Descriptor() Descriptor {
	return Descriptor{
		Table:        TableTransact,
		Dependencies: []LegacyTable{TableName, TableStore},
		Actions:      upsertDelete,
	}
}

func (transactTranslator) Translate(ctx context.Context, tc *Context, env ir.Envelope) (Result, error) {
	if env.Action == ir.ActionDelete {
		return deleteOp(domain.InvoiceTable, env), nil
	}

	var t legacyTransact
	if err := decodePayload(env, defTransact, &t); err != nil {
		return Result{}, err
	}

	typ, ok := legacyInvoiceType(t.Type)
	if !ok {
		return Result{}, newTranslationError(env, fmt.Sprintf("unknown transact type %q", t.Type), nil)
	}
	status, ok := legacyInvoiceStatus(t.Status, typ)
	if !ok {
		return Result{}, newTranslationError(env, fmt.Sprintf("unknown transact status %q", t.Status), nil)
	}

	created, err := time.Parse(legacyDateLayout, t.EntryDate)
	if err != nil {
		return Result{}, newTranslationError(env, "entry_date", err)
	}
	created = created.Add(time.Duration(t.EntryTime) * time.Second)

	confirmed, err := datetimeString(t.ConfirmDate)
	if err != nil {
		return Result{}, newTranslationError(env, "confirm_date", err)
	}
	finalised, err := datetimeString(t.FinalisedDate)
	if err != nil {
		return Result{}, newTranslationError(env, "finalised_date", err)
	}

	nameLink, err := resolveLink(ctx, tc, domain.LinkName, t.NameID)
	if err != nil {
		return Result{}, err
	}

	row := domain.InvoiceRow{
		ID:              t.ID,
		NameLinkID:      nameLink,
		StoreID:         t.StoreID,
		InvoiceNumber:   t.InvoiceNum,
		Type:            typ,
		Status:          status,
		OnHold:          t.Hold,
		Comment:         nonEmpty(t.Comment),
		TheirReference:  nonEmpty(t.TheirRef),
		CreatedDatetime: created.Format(datetimeLayout),
	}
	switch typ {
	case domain.InvoiceOutboundShipment:
		row.PickedDatetime = confirmed
		row.ShippedDatetime = finalised
	case domain.InvoiceInboundShipment:
		row.DeliveredDatetime = confirmed
		row.VerifiedDatetime = finalised
	default:
		row.PickedDatetime = confirmed
		row.VerifiedDatetime = finalised
	}
	return Result{Ops: []ir.Op{ir.Upsert(row)}}, nil
}

type legacyTransLine struct {
	ID            string   `json:"ID"`
	TransactionID string   `json:"transaction_ID"`
	ItemID        string   `json:"item_ID"`
	ItemName      string   `json:"item_name"`
	ItemCode      *string  `json:"item_code"`
	Type          string   `json:"type"`
	Batch         *string  `json:"batch"`
	ExpiryDate    *string  `json:"expiry_date"`
	PackSize      float64  `json:"pack_size"`
	Quantity      float64  `json:"quantity"`
	CostPrice     *float64 `json:"cost_price"`
	SellPrice     *float64 `json:"sell_price"`
	Note          *string  `json:"note"`
}

type transLineTranslator struct{}

func (transLineTranslator) Descriptor() Descriptor {
	return Descriptor{
		Table:        TableTransLine,
		Dependencies: []LegacyTable{TableItem, TableTransact},
		Actions:      upsertDelete,
	}
}

func (transLineTranslator) Translate(ctx context.Context, tc *Context, env ir.Envelope) (Result, error) {
	if env.Action == ir.ActionDelete {
		return deleteOp(domain.InvoiceLineTable, env), nil
	}

	var l legacyTransLine
	if err := decodePayload(env, defTransLine, &l); err != nil {
		return Result{}, err
	}

	typ, ok := legacyLineType(l.Type)
	if !ok {
		return Result{}, newTranslationError(env, fmt.Sprintf("unknown trans_line type %q", l.Type), nil)
	}
	expiry, err := dateString(l.ExpiryDate)
	if err != nil {
		return Result{}, newTranslationError(env, "expiry_date", err)
	}

	exists, err := tc.Rows.Exists(ctx, domain.InvoiceTable, l.TransactionID)
	if err != nil {
		return Result{}, fmt.Errorf("check invoice %s: %w", l.TransactionID, err)
	}
	if !exists {
		return Result{}, newTranslationError(env, "unknown transact "+l.TransactionID, nil)
	}

	itemLink, err := resolveLink(ctx, tc, domain.LinkItem, l.ItemID)
	if err != nil {
		return Result{}, err
	}

	row := domain.InvoiceLineRow{
		ID:            l.ID,
		InvoiceID:     l.TransactionID,
		ItemLinkID:    itemLink,
		ItemName:      l.ItemName,
		ItemCode:      deref(l.ItemCode),
		Type:          typ,
		Batch:         nonEmpty(l.Batch),
		ExpiryDate:    expiry,
		PackSize:      l.PackSize,
		NumberOfPacks: l.Quantity,
		Note:          nonEmpty(l.Note),
	}
	if l.CostPrice != nil {
		row.CostPricePerPack = *l.CostPrice
	}
	if l.SellPrice != nil {
		row.SellPricePerPack = *l.SellPrice
	}
	return Result{Ops: []ir.Op{ir.Upsert(row)}}, nil
}
