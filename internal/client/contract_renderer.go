package client

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/studioflow-io/be-orders/internal/repository"
)

// ContractRenderer renders a contract into an HTML document suitable for
// email attachment.
type ContractRenderer struct {
	tmpl *template.Template
}

var contractTemplate = template.Must(template.New("contract").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Service Contract</title></head>
<body>
  <h1>Service Contract</h1>
  <table>
    <tr><td>Client</td><td>{{.ClientName}}</td></tr>
    <tr><td>Contract ID</td><td>{{.ContractID}}</td></tr>
    <tr><td>Period</td><td>{{.PeriodMonths}} months</td></tr>
    {{if .MonthlyFee}}<tr><td>Monthly fee</td><td>{{.MonthlyFee}}</td></tr>{{end}}
    {{if .StartDate}}<tr><td>Start date</td><td>{{.StartDate}}</td></tr>{{end}}
    {{if .EndDate}}<tr><td>End date</td><td>{{.EndDate}}</td></tr>{{end}}
    <tr><td>Status</td><td>{{.Status}}</td></tr>
  </table>
  <p>Issued {{.IssuedAt}}</p>
</body>
</html>
`))

// NewContractRenderer creates a renderer with the built-in template.
func NewContractRenderer() *ContractRenderer {
	return &ContractRenderer{tmpl: contractTemplate}
}

type contractTemplateData struct {
	ClientName   string
	ContractID   string
	PeriodMonths int
	MonthlyFee   string
	StartDate    string
	EndDate      string
	Status       string
	IssuedAt     string
}

// RenderContractDocument renders the contract into document bytes.
func (r *ContractRenderer) RenderContractDocument(contract *repository.Contract, clientName string) ([]byte, error) {
	data := contractTemplateData{
		ClientName:   clientName,
		ContractID:   contract.ID,
		PeriodMonths: contract.ContractPeriod,
		Status:       string(contract.Status),
		IssuedAt:     time.Now().Format("2006-01-02"),
	}
	if contract.MonthlyFee != nil {
		data.MonthlyFee = fmt.Sprintf("%d", *contract.MonthlyFee)
	}
	if contract.StartDate != nil {
		data.StartDate = contract.StartDate.Format("2006-01-02")
	}
	if contract.EndDate != nil {
		data.EndDate = contract.EndDate.Format("2006-01-02")
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render contract document: %w", err)
	}
	return buf.Bytes(), nil
}
