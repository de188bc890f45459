package translation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/msync/internal/domain"
	"github.com/roach88/msync/internal/ir"
)

const (
	legacyDateLayout = "2006-01-02"
	datetimeLayout   = "2006-01-02T15:04:05"

	// legacyZeroDate is how the legacy database writes a missing date.
	legacyZeroDate = "0000-00-00"
)

// legacyDate parses an optional legacy date. Missing, empty and zero dates
// are nil.
func legacyDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" || *s == legacyZeroDate {
		return nil, nil
	}
	t, err := time.Parse(legacyDateLayout, *s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", *s, err)
	}
	return &t, nil
}

// dateString formats an optional legacy date as YYYY-MM-DD.
func dateString(s *string) (*string, error) {
	t, err := legacyDate(s)
	if err != nil || t == nil {
		return nil, err
	}
	out := t.Format(legacyDateLayout)
	return &out, nil
}

// datetimeString formats an optional legacy date as a midnight datetime.
func datetimeString(s *string) (*string, error) {
	t, err := legacyDate(s)
	if err != nil || t == nil {
		return nil, err
	}
	out := t.Format(datetimeLayout)
	return &out, nil
}

// nonEmpty returns nil for a missing or blank string.
func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// legacyNameType maps the legacy name type column. Unrecognised types are
// "others": the legacy system grew site-specific types msync does not model.
func legacyNameType(code string) domain.NameType {
	switch t := domain.NameType(strings.ToLower(strings.TrimSpace(code))); t {
	case domain.NameFacility, domain.NamePatient, domain.NameBuild, domain.NameInvad,
		domain.NameRepack, domain.NameStore:
		return t
	default:
		return domain.NameOthers
	}
}

// legacyItemType maps the legacy item type_of column.
func legacyItemType(code string) (domain.ItemType, bool) {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "general":
		return domain.ItemStock, true
	case "service":
		return domain.ItemService, true
	case "non_stock":
		return domain.ItemNonStock, true
	default:
		return "", false
	}
}

// legacyInvoiceType maps the legacy transact type code.
func legacyInvoiceType(code string) (domain.InvoiceType, bool) {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "ci":
		return domain.InvoiceOutboundShipment, true
	case "si":
		return domain.InvoiceInboundShipment, true
	case "ps":
		return domain.InvoicePrescription, true
	case "in", "sc":
		return domain.InvoiceInventoryAdjust, true
	case "bu":
		return domain.InvoiceRepack, true
	default:
		return "", false
	}
}

// legacyInvoiceStatus maps the legacy transact status code. The meaning of
// "cn" (confirmed) and "fn" (finalised) depends on the direction of the
// invoice.
func legacyInvoiceStatus(code string, typ domain.InvoiceType) (domain.InvoiceStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "nw", "sg":
		return domain.StatusNew, true
	case "cn":
		if typ == domain.InvoiceInboundShipment {
			return domain.StatusDelivered, true
		}
		return domain.StatusPicked, true
	case "fn":
		if typ == domain.InvoiceOutboundShipment {
			return domain.StatusShipped, true
		}
		return domain.StatusVerified, true
	default:
		return "", false
	}
}

// legacyLineType maps the legacy trans_line type column.
func legacyLineType(code string) (domain.InvoiceLineType, bool) {
	switch t := domain.InvoiceLineType(strings.ToLower(strings.TrimSpace(code))); t {
	case domain.LineStockIn, domain.LineStockOut, domain.LineService:
		return t, true
	default:
		return "", false
	}
}

// resolveLink resolves a foreign entity id and returns the link id a row
// stores. The row keeps pointing at the observed id; reads join through the
// link table to reach the canonical entity.
func resolveLink(ctx context.Context, tc *Context, kind domain.LinkKind, raw string) (string, error) {
	link, err := tc.Links.Resolve(ctx, kind, raw)
	if err != nil {
		return "", fmt.Errorf("resolve %s %s: %w", kind, raw, err)
	}
	return link.ID, nil
}

// identityLinkOps returns the op creating the identity link of an entity the
// first time its own record is integrated.
func identityLinkOps(ctx context.Context, tc *Context, kind domain.LinkKind, id string) ([]ir.Op, error) {
	_, found, err := tc.Links.Find(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, nil
	}
	return []ir.Op{ir.Upsert(domain.IdentityLink(kind, id))}, nil
}

func deleteOp(table string, env ir.Envelope) Result {
	return Result{Ops: []ir.Op{ir.Delete(table, env.RecordID)}}
}
