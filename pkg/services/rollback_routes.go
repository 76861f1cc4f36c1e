package services

import "github.com/hodlisma/hodlisma-engine/pkg/models"

// Rollback routing. A module route wins over an entity route; anything that
// matches neither lands in the savings vault. Adding a trackable entity type
// is one line in entityRoutes.
var (
	moduleRoutes = map[models.AuditModule]models.Collection{
		models.AuditModuleCrypto: models.CollectionAssets,
	}

	entityRoutes = map[string]models.Collection{
		models.AuditEntityTransaction: models.CollectionTransactions,
		models.AuditEntityCategory:    models.CollectionCategories,
	}

	fallbackRoute = models.CollectionSavings
)

// RouteCollection returns the table a rollback of an entry with this module and
// entity type must write to.
func RouteCollection(module models.AuditModule, entityType string) models.Collection {
	if coll, ok := moduleRoutes[module]; ok {
		return coll
	}
	if coll, ok := entityRoutes[entityType]; ok {
		return coll
	}
	return fallbackRoute
}
