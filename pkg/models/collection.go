package models

// Collection names a physical table that audit entries can target.
type Collection string

const (
	CollectionAuditLogs    Collection = "audit_logs"
	CollectionAssets       Collection = "assets"
	CollectionTransactions Collection = "personal_transactions"
	CollectionCategories   Collection = "finance_categories"
	CollectionSavings      Collection = "savings_vault"
)

// String returns the table name.
func (c Collection) String() string {
	return string(c)
}

// collectionColumns lists the columns a snapshot may write for each collection.
// Snapshot keys become SQL identifiers, so anything outside this list is rejected.
var collectionColumns = map[Collection][]string{
	CollectionAssets:       {"symbol", "name", "quantity", "buy_price"},
	CollectionTransactions: {"category_id", "amount", "date", "note", "type"},
	CollectionCategories:   {"name", "type", "icon", "color"},
	CollectionSavings:      {"name", "target_amount", "current_amount", "is_completed"},
}

// HasColumn reports whether column is writable in the collection.
func (c Collection) HasColumn(column string) bool {
	for _, col := range collectionColumns[c] {
		if col == column {
			return true
		}
	}
	return false
}

// Columns returns the writable columns of the collection.
func (c Collection) Columns() []string {
	return collectionColumns[c]
}
