package translation

import (
	"context"

	"github.com/roach88/msync/internal/domain"
	"github.com/roach88/msync/internal/ir"
)

type legacyName struct {
	ID           string  `json:"ID"`
	Name         string  `json:"name"`
	Code         string  `json:"code"`
	Type         string  `json:"type"`
	Customer     bool    `json:"customer"`
	Supplier     bool    `json:"supplier"`
	Manufacturer bool    `json:"manufacturer"`
	First        *string `json:"first"`
	Last         *string `json:"last"`
	Female       *bool   `json:"female"`
	DateOfBirth  *string `json:"date_of_birth"`
	Phone        *string `json:"phone"`
	Email        *string `json:"email"`
	Comment      *string `json:"comment"`
	Hold         bool    `json:"hold"`
}

type nameTranslator struct{}

func (nameTranslator) Descriptor() Descriptor {
	return Descriptor{Table: TableName, Actions: upsertMergeables}
}

func (nameTranslator) Translate(ctx context.Context, tc *Context, env ir.Envelope) (Result, error) {
	if env.IsMerge() {
		return ResolveMerge(ctx, tc, domain.LinkName, env)
	}

	var n legacyName
	if err := decodePayload(env, defName, &n); err != nil {
		return Result{}, err
	}
	dob, err := dateString(n.DateOfBirth)
	if err != nil {
		return Result{}, newTranslationError(env, "date_of_birth", err)
	}

	typ := legacyNameType(n.Type)
	row := domain.NameRow{
		ID:             n.ID,
		Name:           n.Name,
		Code:           n.Code,
		Type:           typ,
		IsCustomer:     n.Customer,
		IsSupplier:     n.Supplier,
		IsManufacturer: n.Manufacturer,
		FirstName:      nonEmpty(n.First),
		LastName:       nonEmpty(n.Last),
		DateOfBirth:    dob,
		Phone:          nonEmpty(n.Phone),
		Email:          nonEmpty(n.Email),
		Comment:        nonEmpty(n.Comment),
		OnHold:         n.Hold,
	}
	if typ == domain.NamePatient && n.Female != nil {
		gender := string(domain.GenderMale)
		if *n.Female {
			gender = string(domain.GenderFemale)
		}
		row.Gender = &gender
	}

	ops, err := identityLinkOps(ctx, tc, domain.LinkName, n.ID)
	if err != nil {
		return Result{}, err
	}
	return Result{Ops: append(ops, ir.Upsert(row))}, nil
}

type legacyNameTag struct {
	ID          string `json:"ID"`
	Description string `json:"description"`
}

type nameTagTranslator struct{}

func (nameTagTranslator) Descriptor() Descriptor {
	return Descriptor{Table: TableNameTag, Actions: upsertOnly}
}

func (nameTagTranslator) Translate(_ context.Context, _ *Context, env ir.Envelope) (Result, error) {
	var t legacyNameTag
	if err := decodePayload(env, defNameTag, &t); err != nil {
		return Result{}, err
	}
	row := domain.NameTagRow{ID: t.ID, Name: t.Description}
	return Result{Ops: []ir.Op{ir.Upsert(row)}}, nil
}

type legacyNameTagJoin struct {
	ID        string `json:"ID"`
	NameID    string `json:"name_ID"`
	NameTagID string `json:"name_tag_ID"`
}

type nameTagJoinTranslator struct{}

func (nameTagJoinTranslator) Descriptor() Descriptor {
	return Descriptor{
		Table:        TableNameTagJoin,
		Dependencies: []LegacyTable{TableName, TableNameTag},
		Actions:      upsertDelete,
	}
}

func (nameTagJoinTranslator) Translate(ctx context.Context, tc *Context, env ir.Envelope) (Result, error) {
	if env.Action == ir.ActionDelete {
		return deleteOp(domain.NameTagJoinTable, env), nil
	}

	var j legacyNameTagJoin
	if err := decodePayload(env, defNameTagJoin, &j); err != nil {
		return Result{}, err
	}
	nameLink, err := resolveLink(ctx, tc, domain.LinkName, j.NameID)
	if err != nil {
		return Result{}, err
	}
	row := domain.NameTagJoinRow{ID: j.ID, NameLinkID: nameLink, NameTagID: j.NameTagID}
	return Result{Ops: []ir.Op{ir.Upsert(row)}}, nil
}

type legacyStore struct {
	ID         string `json:"ID"`
	NameID     string `json:"name_ID"`
	Code       string `json:"code"`
	RemoteSite int64  `json:"sync_id_remote_site"`
}

type storeTranslator struct{}

func (storeTranslator) Descriptor() Descriptor {
	return Descriptor{
		Table:        TableStore,
		Dependencies: []LegacyTable{TableName},
		Actions:      upsertOnly,
	}
}

func (storeTranslator) Translate(ctx context.Context, tc *Context, env ir.Envelope) (Result, error) {
	var s legacyStore
	if err := decodePayload(env, defStore, &s); err != nil {
		return Result{}, err
	}
	nameLink, err := resolveLink(ctx, tc, domain.LinkName, s.NameID)
	if err != nil {
		return Result{}, err
	}
	row := domain.StoreRow{ID: s.ID, NameLinkID: nameLink, Code: s.Code, SiteID: s.RemoteSite}
	return Result{Ops: []ir.Op{ir.Upsert(row)}}, nil
}

type legacyNameStoreJoin struct {
	ID       string `json:"ID"`
	NameID   string `json:"name_ID"`
	StoreID  string `json:"store_ID"`
	Customer bool   `json:"customer"`
	Supplier bool   `json:"supplier"`
}

type nameStoreJoinTranslator struct{}

func (nameStoreJoinTranslator) Descriptor() Descriptor {
	return Descriptor{
		Table:        TableNameStoreJoin,
		Dependencies: []LegacyTable{TableName, TableStore},
		Actions:      upsertDelete,
	}
}

func (nameStoreJoinTranslator) Translate(ctx context.Context, tc *Context, env ir.Envelope) (Result, error) {
	if env.Action == ir.ActionDelete {
		return deleteOp(domain.NameStoreJoinTable, env), nil
	}

	var j legacyNameStoreJoin
	if err := decodePayload(env, defNameStoreJoin, &j); err != nil {
		return Result{}, err
	}
	nameLink, err := resolveLink(ctx, tc, domain.LinkName, j.NameID)
	if err != nil {
		return Result{}, err
	}
	row := domain.NameStoreJoinRow{
		ID:             j.ID,
		NameLinkID:     nameLink,
		StoreID:        j.StoreID,
		NameIsCustomer: j.Customer,
		NameIsSupplier: j.Supplier,
	}
	return Result{Ops: []ir.Op{ir.Upsert(row)}}, nil
}
