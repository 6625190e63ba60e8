package matcher

import (
	"golang-bankrec-service/internal/chart"
	"golang-bankrec-service/internal/models"
)

// RetrievePartner returns the statement partner, else the owner of the
// bank account number, else the partner with the exact statement partner
// name. Zero means no partner.
func RetrievePartner(c *chart.Chart, st *models.StatementLine) int64 {
	if st.PartnerID != 0 {
		return st.PartnerID
	}
	if p, ok := c.PartnerByBankAccount(st.AccountNumber); ok {
		return p.ID
	}
	if p, ok := c.PartnerByName(st.PartnerName); ok {
		return p.ID
	}
	return 0
}
