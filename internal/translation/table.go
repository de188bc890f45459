package translation

// LegacyTable names a table of the legacy sync buffer.
type LegacyTable string

const (
	TableUnit          LegacyTable = "unit"
	TableItem          LegacyTable = "item"
	TableName          LegacyTable = "name"
	TableNameTag       LegacyTable = "name_tag"
	TableNameTagJoin   LegacyTable = "name_tag_join"
	TableStore         LegacyTable = "store"
	TableNameStoreJoin LegacyTable = "name_store_join"
	TableTransact      LegacyTable = "transact"
	TableTransLine     LegacyTable = "trans_line"
)

// AllTables lists every legacy table msync can translate.
func AllTables() []LegacyTable {
	return []LegacyTable{
		TableUnit,
		TableItem,
		TableName,
		TableNameTag,
		TableNameTagJoin,
		TableStore,
		TableNameStoreJoin,
		TableTransact,
		TableTransLine,
	}
}

// Lookup returns the built-in translator of a legacy table.
// Unknown tables return false; the caller decides how to skip them.
func Lookup(table LegacyTable) (Translator, bool) {
	switch table {
	case TableUnit:
		return unitTranslator{}, true
	case TableItem:
		return itemTranslator{}, true
	case TableName:
		return nameTranslator{}, true
	case TableNameTag:
		return nameTagTranslator{}, true
	case TableNameTagJoin:
		return nameTagJoinTranslator{}, true
	case TableStore:
		return storeTranslator{}, true
	case TableNameStoreJoin:
		return nameStoreJoinTranslator{}, true
	case TableTransact:
		return transactTranslator{}, true
	case TableTransLine:
		return transLineTranslator{}, true
	default:
		return nil, false
	}
}
