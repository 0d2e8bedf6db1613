package importer

import (
	"github.com/mmdatafocus/leasing_backend/models"
	"github.com/mmdatafocus/leasing_backend/utils"
)

// ClientIndex is the batch's view of a tenant's clients, keyed by normalized tax id and
// canonical names. It grows as the batch creates clients and is owned by one batch.
// The first client registered under a key keeps it.
type ClientIndex struct {
	clients []*models.Client
	byTaxID map[string]*models.Client
	byName  map[string]*models.Client
}

func NewClientIndex(existing []models.Client) *ClientIndex {
	ix := &ClientIndex{
		clients: make([]*models.Client, 0, len(existing)),
		byTaxID: make(map[string]*models.Client, len(existing)),
		byName:  make(map[string]*models.Client, len(existing)),
	}
	for i := range existing {
		ix.Add(&existing[i])
	}
	return ix
}

func (ix *ClientIndex) Add(c *models.Client) {
	ix.clients = append(ix.clients, c)
	ix.indexKeys(c)
}

// Reindex registers keys gained by an already indexed client (e.g. after enrichment).
func (ix *ClientIndex) Reindex(c *models.Client) {
	ix.indexKeys(c)
}

func (ix *ClientIndex) indexKeys(c *models.Client) {
	if key := NormalizeTaxID(utils.DereferencePtr(c.TaxId)); key != "" {
		if _, taken := ix.byTaxID[key]; !taken {
			ix.byTaxID[key] = c
		}
	}
	for _, key := range ClientNameKeys(c) {
		if _, taken := ix.byName[key]; !taken {
			ix.byName[key] = c
		}
	}
}

func (ix *ClientIndex) ByTaxID(key string) *models.Client {
	if key == "" {
		return nil
	}
	return ix.byTaxID[key]
}

func (ix *ClientIndex) ByName(key string) *models.Client {
	if key == "" {
		return nil
	}
	return ix.byName[key]
}

// Clients returns clients in load-then-creation order.
func (ix *ClientIndex) Clients() []*models.Client {
	return ix.clients
}

func (ix *ClientIndex) Len() int {
	return len(ix.clients)
}

// ClientNameKeys are the canonical company and personal names of a client.
func ClientNameKeys(c *models.Client) []string {
	personal := utils.DereferencePtr(c.FirstName) + " " + utils.DereferencePtr(c.LastName)
	return canonicalKeys(utils.DereferencePtr(c.CompanyName), c.Name, personal)
}
