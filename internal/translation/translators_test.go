package translation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/msync/internal/domain"
	"github.com/roach88/msync/internal/ir"
	"github.com/roach88/msync/internal/links"
)

func TestUnit_Upsert(t *testing.T) {
	s := openTestStore(t)
	env := envelope("u1", TableUnit, ir.ActionUpsert, 1, payload(t, map[string]any{
		"ID":           "u1",
		"units":        "Tab",
		"comment":      "",
		"order_number": 3,
		"extra_column": "ignored",
	}))

	res := mustApply(t, s, env)
	assert.Equal(t, []string{domain.UnitTable}, opTables(res.Ops))

	var row domain.UnitRow
	require.NoError(t, s.Get(context.Background(), &row, domain.UnitTable, "u1"))
	assert.Equal(t, domain.UnitRow{ID: "u1", Name: "Tab", Index: 3}, row)
}

func TestInvalidPayload(t *testing.T) {
	tests := []struct {
		name  string
		table LegacyTable
		data  string
	}{
		{"missing id", TableUnit, `{"units":"Tab"}`},
		{"empty id", TableNameTag, `{"ID":"","description":"x"}`},
		{"wrong type", TableName, `{"ID":"n1","name":"x","code":"x","type":"facility","customer":"yes","supplier":false}`},
		{"bad date", TableTransact, `{"ID":"t1","name_ID":"n1","store_ID":"s1","invoice_num":1,"type":"ci","status":"nw","entry_date":"01/02/2024"}`},
		{"zero pack size", TableTransLine, `{"ID":"l1","transaction_ID":"t1","item_ID":"i1","item_name":"x","type":"stock_in","pack_size":0,"quantity":1}`},
		{"not json", TableUnit, `{"ID":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			_, err := translateAndApply(t, s, envelope("r1", tt.table, ir.ActionUpsert, 1, []byte(tt.data)))
			require.Error(t, err)
			assert.True(t, IsTranslationError(err), "got %T: %v", err, err)

			var te *TranslationError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, string(tt.table), te.Table)
			assert.Equal(t, "r1", te.RecordID)
		})
	}
}

func TestItem_CreatesIdentityLinkOnce(t *testing.T) {
	s := openTestStore(t)
	data := payload(t, map[string]any{
		"ID":        "i1",
		"item_name": "Paracetamol",
		"code":      "PARA",
		"unit_ID":   "u1",
		"type_of":   "general",
	})

	first := mustApply(t, s, envelope("ri1", TableItem, ir.ActionUpsert, 1, data))
	assert.Equal(t, []string{domain.ItemLinkTable, domain.ItemTable}, opTables(first.Ops))

	second := mustApply(t, s, envelope("ri1", TableItem, ir.ActionUpsert, 2, data))
	assert.Equal(t, []string{domain.ItemTable}, opTables(second.Ops))

	var row domain.ItemRow
	require.NoError(t, s.Get(context.Background(), &row, domain.ItemTable, "i1"))
	assert.Equal(t, domain.ItemStock, row.Type)
	require.NotNil(t, row.UnitID)
	assert.Equal(t, "u1", *row.UnitID)

	link, err := s.LookupLink(context.Background(), domain.LinkItem, "i1")
	require.NoError(t, err)
	assert.True(t, link.IsIdentity())
}

func TestItem_UnknownType(t *testing.T) {
	s := openTestStore(t)
	_, err := translateAndApply(t, s, envelope("ri1", TableItem, ir.ActionUpsert, 1, payload(t, map[string]any{
		"ID":        "i1",
		"item_name": "x",
		"code":      "x",
		"type_of":   "kit",
	})))
	require.Error(t, err)
	assert.True(t, IsTranslationError(err))
	assert.Contains(t, err.Error(), "unknown item type kit")
}

func TestName_Patient(t *testing.T) {
	s := openTestStore(t)
	mustApply(t, s, envelope("rn1", TableName, ir.ActionUpsert, 1, payload(t, map[string]any{
		"ID":            "n1",
		"name":          "Doe, Jane",
		"code":          "P001",
		"type":          "patient",
		"customer":      true,
		"supplier":      false,
		"first":         "Jane",
		"last":          "Doe",
		"female":        true,
		"date_of_birth": "1990-04-12",
		"phone":         "",
		"hold":          true,
	})))

	var row domain.NameRow
	require.NoError(t, s.Get(context.Background(), &row, domain.NameTable, "n1"))
	assert.Equal(t, domain.NamePatient, row.Type)
	assert.True(t, row.IsCustomer)
	assert.True(t, row.OnHold)
	require.NotNil(t, row.Gender)
	assert.Equal(t, "female", *row.Gender)
	require.NotNil(t, row.DateOfBirth)
	assert.Equal(t, "1990-04-12", *row.DateOfBirth)
	assert.Nil(t, row.Phone)
	require.NotNil(t, row.FirstName)
	assert.Equal(t, "Jane", *row.FirstName)
}

func TestName_LegacyConventions(t *testing.T) {
	s := openTestStore(t)
	mustApply(t, s, envelope("rn2", TableName, ir.ActionUpsert, 1, payload(t, map[string]any{
		"ID":            "n2",
		"name":          "Central Warehouse",
		"code":          "CW",
		"type":          "site_specific",
		"customer":      false,
		"supplier":      true,
		"female":        true,
		"date_of_birth": "0000-00-00",
	})))

	var row domain.NameRow
	require.NoError(t, s.Get(context.Background(), &row, domain.NameTable, "n2"))
	assert.Equal(t, domain.NameOthers, row.Type)
	assert.Nil(t, row.DateOfBirth, "zero dates are null")
	assert.Nil(t, row.Gender, "gender is only kept for patients")
}

func TestNameTagJoin_ResolvesName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mustApply(t, s, nameEnvelope(t, "n1", 1))
	mustApply(t, s, nameEnvelope(t, "n2", 2))
	mustApply(t, s, mergeEnvelope(t, "m1", TableName, "n1", "n2", 3))

	mustApply(t, s, envelope("j1", TableNameTagJoin, ir.ActionUpsert, 4, payload(t, map[string]any{
		"ID":          "j1",
		"name_ID":     "n2",
		"name_tag_ID": "tag1",
	})))

	var row domain.NameTagJoinRow
	require.NoError(t, s.Get(ctx, &row, domain.NameTagJoinTable, "j1"))
	assert.Equal(t, "n2", row.NameLinkID, "rows keep the observed id")

	link, err := s.LookupLink(ctx, domain.LinkName, row.NameLinkID)
	require.NoError(t, err)
	assert.Equal(t, "n1", link.CanonicalID)
}

func TestNameTagJoin_Delete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mustApply(t, s, envelope("j1", TableNameTagJoin, ir.ActionUpsert, 1, payload(t, map[string]any{
		"ID":          "j1",
		"name_ID":     "n1",
		"name_tag_ID": "tag1",
	})))
	res := mustApply(t, s, envelope("j1", TableNameTagJoin, ir.ActionDelete, 2, []byte(`{}`)))
	require.Len(t, res.Ops, 1)
	assert.Equal(t, ir.Delete(domain.NameTagJoinTable, "j1"), res.Ops[0])

	n, err := s.Count(ctx, domain.NameTagJoinTable)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_AndNameStoreJoin(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mustApply(t, s, envelope("s1", TableStore, ir.ActionUpsert, 1, payload(t, map[string]any{
		"ID":                  "s1",
		"name_ID":             "n1",
		"code":                "MAIN",
		"sync_id_remote_site": 4,
	})))
	mustApply(t, s, envelope("nsj1", TableNameStoreJoin, ir.ActionUpsert, 2, payload(t, map[string]any{
		"ID":       "nsj1",
		"name_ID":  "n2",
		"store_ID": "s1",
		"customer": true,
	})))

	var st domain.StoreRow
	require.NoError(t, s.Get(ctx, &st, domain.StoreTable, "s1"))
	assert.Equal(t, domain.StoreRow{ID: "s1", NameLinkID: "n1", Code: "MAIN", SiteID: 4}, st)

	var join domain.NameStoreJoinRow
	require.NoError(t, s.Get(ctx, &join, domain.NameStoreJoinTable, "nsj1"))
	assert.True(t, join.NameIsCustomer)
	assert.False(t, join.NameIsSupplier)

	// Referenced names get identity links before their own records arrive.
	for _, id := range []string{"n1", "n2"} {
		link, err := s.LookupLink(ctx, domain.LinkName, id)
		require.NoError(t, err)
		assert.True(t, link.IsIdentity())
	}
}

func transactPayload(t *testing.T, typ, status string) map[string]any {
	t.Helper()
	return map[string]any{
		"ID":             "t1",
		"name_ID":        "n1",
		"store_ID":       "s1",
		"invoice_num":    42,
		"type":           typ,
		"status":         status,
		"their_ref":      "PO-7",
		"entry_date":     "2024-02-10",
		"entry_time":     3723,
		"confirm_date":   "2024-02-11",
		"finalised_date": "2024-02-12",
	}
}

func TestTransact_Mapping(t *testing.T) {
	tests := []struct {
		name      string
		typ       string
		status    string
		wantType  domain.InvoiceType
		want      domain.InvoiceStatus
		picked    bool
		shipped   bool
		delivered bool
		verified  bool
	}{
		{"outbound finalised", "ci", "fn", domain.InvoiceOutboundShipment, domain.StatusShipped, true, true, false, false},
		{"outbound confirmed", "ci", "cn", domain.InvoiceOutboundShipment, domain.StatusPicked, true, true, false, false},
		{"inbound confirmed", "si", "cn", domain.InvoiceInboundShipment, domain.StatusDelivered, false, false, true, true},
		{"inbound finalised", "si", "fn", domain.InvoiceInboundShipment, domain.StatusVerified, false, false, true, true},
		{"prescription new", "ps", "nw", domain.InvoicePrescription, domain.StatusNew, true, false, false, true},
		{"adjustment suggested", "in", "sg", domain.InvoiceInventoryAdjust, domain.StatusNew, true, false, false, true},
		{"stocktake finalised", "sc", "fn", domain.InvoiceInventoryAdjust, domain.StatusVerified, true, false, false, true},
		{"repack", "bu", "fn", domain.InvoiceRepack, domain.StatusVerified, true, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			mustApply(t, s, envelope("t1", TableTransact, ir.ActionUpsert, 1,
				payload(t, transactPayload(t, tt.typ, tt.status))))

			inv, err := s.GetResolvedInvoice(context.Background(), "t1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, inv.Type)
			assert.Equal(t, tt.want, inv.Status)
			assert.Equal(t, int64(42), inv.InvoiceNumber)
			assert.Equal(t, "2024-02-10T01:02:03", inv.CreatedDatetime)
			assert.Equal(t, "n1", inv.NameID)
			assert.Equal(t, tt.picked, inv.PickedDatetime != nil, "picked")
			assert.Equal(t, tt.shipped, inv.ShippedDatetime != nil, "shipped")
			assert.Equal(t, tt.delivered, inv.DeliveredDatetime != nil, "delivered")
			assert.Equal(t, tt.verified, inv.VerifiedDatetime != nil, "verified")
		})
	}
}

func TestTransact_ZeroDatesAreNull(t *testing.T) {
	s := openTestStore(t)
	p := transactPayload(t, "ci", "nw")
	p["confirm_date"] = "0000-00-00"
	p["finalised_date"] = nil
	mustApply(t, s, envelope("t1", TableTransact, ir.ActionUpsert, 1, payload(t, p)))

	inv, err := s.GetResolvedInvoice(context.Background(), "t1")
	require.NoError(t, err)
	assert.Nil(t, inv.PickedDatetime)
	assert.Nil(t, inv.ShippedDatetime)
}

func TestTransact_UnknownCodes(t *testing.T) {
	tests := []struct {
		name   string
		typ    string
		status string
		msg    string
	}{
		{"type", "zz", "nw", `unknown transact type "zz"`},
		{"status", "ci", "xx", `unknown transact status "xx"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			_, err := translateAndApply(t, s, envelope("t1", TableTransact, ir.ActionUpsert, 1,
				payload(t, transactPayload(t, tt.typ, tt.status))))
			require.Error(t, err)
			assert.True(t, IsTranslationError(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func transLinePayload(t *testing.T) map[string]any {
	t.Helper()
	return map[string]any{
		"ID":             "l1",
		"transaction_ID": "t1",
		"item_ID":        "i2",
		"item_name":      "Amoxicillin",
		"type":           "stock_out",
		"batch":          "B12",
		"expiry_date":    "2026-01-31",
		"pack_size":      10,
		"quantity":       2.5,
		"cost_price":     1.25,
	}
}

func TestTransLine_RequiresInvoice(t *testing.T) {
	s := openTestStore(t)
	_, err := translateAndApply(t, s, envelope("l1", TableTransLine, ir.ActionUpsert, 1,
		payload(t, transLinePayload(t))))
	require.Error(t, err)
	assert.True(t, IsTranslationError(err))
	assert.Contains(t, err.Error(), "unknown transact t1")

	n, err := s.Count(context.Background(), domain.InvoiceLineTable)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTransLine_ResolvesMergedItem(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mustApply(t, s, envelope("t1", TableTransact, ir.ActionUpsert, 1,
		payload(t, transactPayload(t, "ci", "nw"))))
	mustApply(t, s, mergeEnvelope(t, "m1", TableItem, "i1", "i2", 2))
	mustApply(t, s, envelope("l1", TableTransLine, ir.ActionUpsert, 3, payload(t, transLinePayload(t))))

	lines, err := s.ListResolvedInvoiceLines(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, lines, 1)

	line := lines[0]
	assert.Equal(t, "i1", line.ItemID)
	assert.Equal(t, "i2", line.ItemLinkID)
	assert.Equal(t, domain.LineStockOut, line.Type)
	assert.Equal(t, 10.0, line.PackSize)
	assert.Equal(t, 2.5, line.NumberOfPacks)
	assert.Equal(t, 1.25, line.CostPricePerPack)
	assert.Zero(t, line.SellPricePerPack)
	require.NotNil(t, line.ExpiryDate)
	assert.Equal(t, "2026-01-31", *line.ExpiryDate)
}

func TestTransLine_UnknownType(t *testing.T) {
	s := openTestStore(t)
	mustApply(t, s, envelope("t1", TableTransact, ir.ActionUpsert, 1,
		payload(t, transactPayload(t, "ci", "nw"))))

	p := transLinePayload(t)
	p["type"] = "placeholder"
	_, err := translateAndApply(t, s, envelope("l1", TableTransLine, ir.ActionUpsert, 2, payload(t, p)))
	require.Error(t, err)
	assert.True(t, IsTranslationError(err))
}

func TestMerge_AppliedWritesTombstone(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mustApply(t, s, nameEnvelope(t, "n1", 1))
	mustApply(t, s, nameEnvelope(t, "n2", 2))

	res := mustApply(t, s, mergeEnvelope(t, "m1", TableName, "n1", "n2", 3))
	assert.False(t, res.Skipped)
	assert.Equal(t, []string{domain.MergeTombstoneTable}, opTables(res.Ops))

	tombs, err := s.Tombstones(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.MergeTombstoneRow{
		domain.NewMergeTombstone(domain.LinkName, "n1", "n2", "m1", "2024-03-01T12:00:00Z"),
	}, tombs)

	link, err := s.LookupLink(ctx, domain.LinkName, "n2")
	require.NoError(t, err)
	assert.Equal(t, "n1", link.CanonicalID)
}

func TestMerge_RepeatIsSkipped(t *testing.T) {
	s := openTestStore(t)

	mustApply(t, s, mergeEnvelope(t, "m1", TableName, "n1", "n2", 1))
	res := mustApply(t, s, mergeEnvelope(t, "m1", TableName, "n1", "n2", 1))
	assert.True(t, res.Skipped)
	assert.Empty(t, res.Ops)
	assert.Contains(t, res.Reason, "already merged")
}

func TestMerge_SelfMerge(t *testing.T) {
	s := openTestStore(t)
	_, err := translateAndApply(t, s, mergeEnvelope(t, "m1", TableItem, "i1", "i1", 1))
	require.Error(t, err)
	assert.True(t, links.IsLinkResolutionError(err))
	assert.False(t, IsTranslationError(err))
}

func TestMerge_EmptyIDs(t *testing.T) {
	s := openTestStore(t)
	_, err := translateAndApply(t, s, mergeEnvelope(t, "m1", TableName, "", "n2", 1))
	require.Error(t, err)
	assert.True(t, IsTranslationError(err))
}

func TestMerge_UnsupportedTable(t *testing.T) {
	s := openTestStore(t)
	_, err := translateAndApply(t, s, mergeEnvelope(t, "m1", TableStore, "s1", "s2", 1))
	require.Error(t, err)
	assert.True(t, IsTranslationError(err))
	assert.Contains(t, err.Error(), "unsupported action merge")
}
