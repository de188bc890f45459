package domain

import "github.com/roach88/msync/internal/ir"

// Table names of the normalized store.
const (
	UnitTable           = "unit"
	ItemTable           = "item"
	NameTable           = "name"
	NameTagTable        = "name_tag"
	NameTagJoinTable    = "name_tag_join"
	StoreTable          = "store"
	NameStoreJoinTable  = "name_store_join"
	InvoiceTable        = "invoice"
	InvoiceLineTable    = "invoice_line"
	NameLinkTable       = "name_link"
	ItemLinkTable       = "item_link"
	MergeTombstoneTable = "merge_tombstone"
)

// UnitRow is a unit of measure.
type UnitRow struct {
	ID          string  `db:"id"`
	Name        string  `db:"name"`
	Description *string `db:"description"`
	Index       int64   `db:"idx"`
}

func (r UnitRow) TableName() string { return UnitTable }
func (r UnitRow) RowID() string     { return r.ID }
func (r UnitRow) Columns() []string { return []string{"id", "name", "description", "idx"} }
func (r UnitRow) Values() []any     { return []any{r.ID, r.Name, r.Description, r.Index} }

// ItemRow is a catalogue item.
type ItemRow struct {
	ID     string   `db:"id"`
	Name   string   `db:"name"`
	Code   string   `db:"code"`
	UnitID *string  `db:"unit_id"`
	Type   ItemType `db:"type"`
}

func (r ItemRow) TableName() string { return ItemTable }
func (r ItemRow) RowID() string     { return r.ID }
func (r ItemRow) Columns() []string { return []string{"id", "name", "code", "unit_id", "type"} }
func (r ItemRow) Values() []any {
	return []any{r.ID, r.Name, r.Code, r.UnitID, string(r.Type)}
}

// NameRow is a customer, supplier, patient or facility.
type NameRow struct {
	ID             string   `db:"id"`
	Name           string   `db:"name"`
	Code           string   `db:"code"`
	Type           NameType `db:"type"`
	IsCustomer     bool     `db:"is_customer"`
	IsSupplier     bool     `db:"is_supplier"`
	IsManufacturer bool     `db:"is_manufacturer"`
	FirstName      *string  `db:"first_name"`
	LastName       *string  `db:"last_name"`
	Gender         *string  `db:"gender"`
	DateOfBirth    *string  `db:"date_of_birth"`
	Phone          *string  `db:"phone"`
	Email          *string  `db:"email"`
	Comment        *string  `db:"comment"`
	OnHold         bool     `db:"on_hold"`
}

func (r NameRow) TableName() string { return NameTable }
func (r NameRow) RowID() string     { return r.ID }
func (r NameRow) Columns() []string {
	return []string{"id", "name", "code", "type", "is_customer", "is_supplier", "is_manufacturer",
		"first_name", "last_name", "gender", "date_of_birth", "phone", "email", "comment", "on_hold"}
}
func (r NameRow) Values() []any {
	return []any{r.ID, r.Name, r.Code, string(r.Type), r.IsCustomer, r.IsSupplier, r.IsManufacturer,
		r.FirstName, r.LastName, r.Gender, r.DateOfBirth, r.Phone, r.Email, r.Comment, r.OnHold}
}

// NameTagRow is a tag that can be attached to names.
type NameTagRow struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

func (r NameTagRow) TableName() string { return NameTagTable }
func (r NameTagRow) RowID() string     { return r.ID }
func (r NameTagRow) Columns() []string { return []string{"id", "name"} }
func (r NameTagRow) Values() []any     { return []any{r.ID, r.Name} }

// NameTagJoinRow attaches a tag to a name.
type NameTagJoinRow struct {
	ID         string `db:"id"`
	NameLinkID string `db:"name_link_id"`
	NameTagID  string `db:"name_tag_id"`
}

func (r NameTagJoinRow) TableName() string { return NameTagJoinTable }
func (r NameTagJoinRow) RowID() string     { return r.ID }
func (r NameTagJoinRow) Columns() []string { return []string{"id", "name_link_id", "name_tag_id"} }
func (r NameTagJoinRow) Values() []any     { return []any{r.ID, r.NameLinkID, r.NameTagID} }

// StoreRow is a store owned by a name.
type StoreRow struct {
	ID         string `db:"id"`
	NameLinkID string `db:"name_link_id"`
	Code       string `db:"code"`
	SiteID     int64  `db:"site_id"`
}

func (r StoreRow) TableName() string { return StoreTable }
func (r StoreRow) RowID() string     { return r.ID }
func (r StoreRow) Columns() []string { return []string{"id", "name_link_id", "code", "site_id"} }
func (r StoreRow) Values() []any     { return []any{r.ID, r.NameLinkID, r.Code, r.SiteID} }

// NameStoreJoinRow makes a name visible in a store.
type NameStoreJoinRow struct {
	ID             string `db:"id"`
	NameLinkID     string `db:"name_link_id"`
	StoreID        string `db:"store_id"`
	NameIsCustomer bool   `db:"name_is_customer"`
	NameIsSupplier bool   `db:"name_is_supplier"`
}

func (r NameStoreJoinRow) TableName() string { return NameStoreJoinTable }
func (r NameStoreJoinRow) RowID() string     { return r.ID }
func (r NameStoreJoinRow) Columns() []string {
	return []string{"id", "name_link_id", "store_id", "name_is_customer", "name_is_supplier"}
}
func (r NameStoreJoinRow) Values() []any {
	return []any{r.ID, r.NameLinkID, r.StoreID, r.NameIsCustomer, r.NameIsSupplier}
}

// InvoiceRow is a normalized transaction (legacy "transact").
type InvoiceRow struct {
	ID                string        `db:"id"`
	NameLinkID        string        `db:"name_link_id"`
	StoreID           string        `db:"store_id"`
	InvoiceNumber     int64         `db:"invoice_number"`
	Type              InvoiceType   `db:"type"`
	Status            InvoiceStatus `db:"status"`
	OnHold            bool          `db:"on_hold"`
	Comment           *string       `db:"comment"`
	TheirReference    *string       `db:"their_reference"`
	CreatedDatetime   string        `db:"created_datetime"`
	PickedDatetime    *string       `db:"picked_datetime"`
	ShippedDatetime   *string       `db:"shipped_datetime"`
	DeliveredDatetime *string       `db:"delivered_datetime"`
	VerifiedDatetime  *string       `db:"verified_datetime"`
}

func (r InvoiceRow) TableName() string { return InvoiceTable }
func (r InvoiceRow) RowID() string     { return r.ID }
func (r InvoiceRow) Columns() []string {
	return []string{"id", "name_link_id", "store_id", "invoice_number", "type", "status", "on_hold",
		"comment", "their_reference", "created_datetime", "picked_datetime", "shipped_datetime",
		"delivered_datetime", "verified_datetime"}
}
func (r InvoiceRow) Values() []any {
	return []any{r.ID, r.NameLinkID, r.StoreID, r.InvoiceNumber, string(r.Type), string(r.Status), r.OnHold,
		r.Comment, r.TheirReference, r.CreatedDatetime, r.PickedDatetime, r.ShippedDatetime,
		r.DeliveredDatetime, r.VerifiedDatetime}
}

// InvoiceLineRow is a normalized transaction line (legacy "trans_line").
type InvoiceLineRow struct {
	ID               string          `db:"id"`
	InvoiceID        string          `db:"invoice_id"`
	ItemLinkID       string          `db:"item_link_id"`
	ItemName         string          `db:"item_name"`
	ItemCode         string          `db:"item_code"`
	Type             InvoiceLineType `db:"type"`
	Batch            *string         `db:"batch"`
	ExpiryDate       *string         `db:"expiry_date"`
	PackSize         float64         `db:"pack_size"`
	NumberOfPacks    float64         `db:"number_of_packs"`
	CostPricePerPack float64         `db:"cost_price_per_pack"`
	SellPricePerPack float64         `db:"sell_price_per_pack"`
	Note             *string         `db:"note"`
}

func (r InvoiceLineRow) TableName() string { return InvoiceLineTable }
func (r InvoiceLineRow) RowID() string     { return r.ID }
func (r InvoiceLineRow) Columns() []string {
	return []string{"id", "invoice_id", "item_link_id", "item_name", "item_code", "type", "batch",
		"expiry_date", "pack_size", "number_of_packs", "cost_price_per_pack", "sell_price_per_pack", "note"}
}
func (r InvoiceLineRow) Values() []any {
	return []any{r.ID, r.InvoiceID, r.ItemLinkID, r.ItemName, r.ItemCode, string(r.Type), r.Batch,
		r.ExpiryDate, r.PackSize, r.NumberOfPacks, r.CostPricePerPack, r.SellPricePerPack, r.Note}
}

// MergeTombstoneRow records an applied merge. Its id is "<kind>:<deleted id>",
// so re-applying the same merge overwrites rather than duplicates it.
type MergeTombstoneRow struct {
	ID        string   `db:"id"`
	Kind      LinkKind `db:"kind"`
	KeptID    string   `db:"kept_id"`
	DeletedID string   `db:"deleted_id"`
	RecordID  string   `db:"record_id"`
	MergedAt  string   `db:"merged_at"`
}

// NewMergeTombstone builds the tombstone for a merge of deleted into kept.
func NewMergeTombstone(kind LinkKind, kept, deleted, recordID, mergedAt string) MergeTombstoneRow {
	return MergeTombstoneRow{
		ID:        string(kind) + ":" + deleted,
		Kind:      kind,
		KeptID:    kept,
		DeletedID: deleted,
		RecordID:  recordID,
		MergedAt:  mergedAt,
	}
}

func (r MergeTombstoneRow) TableName() string { return MergeTombstoneTable }
func (r MergeTombstoneRow) RowID() string     { return r.ID }
func (r MergeTombstoneRow) Columns() []string {
	return []string{"id", "kind", "kept_id", "deleted_id", "record_id", "merged_at"}
}
func (r MergeTombstoneRow) Values() []any {
	return []any{r.ID, string(r.Kind), r.KeptID, r.DeletedID, r.RecordID, r.MergedAt}
}

var (
	_ ir.Row = UnitRow{}
	_ ir.Row = ItemRow{}
	_ ir.Row = NameRow{}
	_ ir.Row = NameTagRow{}
	_ ir.Row = NameTagJoinRow{}
	_ ir.Row = StoreRow{}
	_ ir.Row = NameStoreJoinRow{}
	_ ir.Row = InvoiceRow{}
	_ ir.Row = InvoiceLineRow{}
	_ ir.Row = MergeTombstoneRow{}
	_ ir.Row = LinkRow{}
)
