package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"airplan/cli/internal/router"
	"airplan/cli/internal/sqlexec"
)

// Agency is an advertising agency, keyed by Code.
type Agency struct {
	ID      int64  `json:"id"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

func (a Agency) validate() error {
	if strings.TrimSpace(a.Code) == "" {
		return fmt.Errorf("agency code is required")
	}
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("agency %s: name is required", a.Code)
	}
	return nil
}

const agencyColumns = "id, code, name, contact, phone"

func scanAgency(row sqlexec.Row) (Agency, error) {
	var a Agency
	var contact, phone sql.NullString
	if err := row.Scan(&a.ID, &a.Code, &a.Name, &contact, &phone); err != nil {
		return Agency{}, err
	}
	a.Contact, a.Phone = contact.String, phone.String
	return a, nil
}

// ListAgencies returns every agency ordered by name.
func (s *Service) ListAgencies(ctx context.Context) ([]Agency, error) {
	res := router.ReadMany(ctx, s.router, s.database,
		"SELECT "+agencyColumns+" FROM agency ORDER BY name", nil, scanAgency)
	return res.Value, readErr(res)
}

// GetAgency looks an agency up by code. found is false when no server that
// answered has it.
func (s *Service) GetAgency(ctx context.Context, code string) (a Agency, found bool, err error) {
	res := router.ReadOne(ctx, s.router, s.database,
		"SELECT "+agencyColumns+" FROM agency WHERE code = :code",
		sqlexec.Params{"code": code}, scanAgency)
	return res.Value, res.Found, readErr(res)
}

// SaveAgency creates or updates the agency on every server.
func (s *Service) SaveAgency(ctx context.Context, a Agency) (router.FanOutResult, error) {
	if err := a.validate(); err != nil {
		return router.FanOutResult{}, err
	}
	params := sqlexec.Params{
		"code":    a.Code,
		"name":    a.Name,
		"contact": nullable(a.Contact),
		"phone":   nullable(a.Phone),
	}
	return s.upsert(ctx, "agency "+a.Code,
		"UPDATE agency SET name = :name, contact = :contact, phone = :phone WHERE code = :code",
		"INSERT INTO agency (code, name, contact, phone) VALUES (:code, :name, :contact, :phone)",
		params)
}

// DeleteAgency removes the agency from every server.
func (s *Service) DeleteAgency(ctx context.Context, code string) (router.FanOutResult, error) {
	if strings.TrimSpace(code) == "" {
		return router.FanOutResult{}, fmt.Errorf("agency code is required")
	}
	return s.exec(ctx, "agency delete "+code,
		"DELETE FROM agency WHERE code = :code", sqlexec.Params{"code": code})
}
