package client

import "encoding/json"

// BasicFields is the fixed column order for enriched corporation records.
var BasicFields = []string{
	"corporate_number",
	"name",
	"date_of_establishment",
	"employee_number",
	"capital_stock",
	"prefecture_code",
	"city_code",
	"postal_code",
	"location",
	"company_url",
	"business_summary",
}

// SearchResponse is the envelope returned by both the list and the detail
// endpoint. A 204 No Content response is normalized to an empty Items slice.
type SearchResponse struct {
	Items []Corporation `json:"hojin-infos"`
}

// Corporation holds the basic attributes of one registry record. Fields the
// API omits stay empty strings; numeric-looking fields are kept verbatim.
type Corporation struct {
	CorporateNumber string     `json:"corporate_number"`
	Name            string     `json:"name"`
	Established     string     `json:"date_of_establishment"`
	EmployeeNumber  FlexString `json:"employee_number"`
	CapitalStock    FlexString `json:"capital_stock"`
	PrefectureCode  FlexString `json:"prefecture_code"`
	CityCode        FlexString `json:"city_code"`
	PostalCode      FlexString `json:"postal_code"`
	Location        string     `json:"location"`
	CompanyURL      string     `json:"company_url"`
	BusinessSummary string     `json:"business_summary"`
}

// Row maps the corporation onto the BasicFields column set.
func (c *Corporation) Row() map[string]string {
	return map[string]string{
		"corporate_number":      c.CorporateNumber,
		"name":                  c.Name,
		"date_of_establishment": c.Established,
		"employee_number":       string(c.EmployeeNumber),
		"capital_stock":         string(c.CapitalStock),
		"prefecture_code":       string(c.PrefectureCode),
		"city_code":             string(c.CityCode),
		"postal_code":           string(c.PostalCode),
		"location":              c.Location,
		"company_url":           c.CompanyURL,
		"business_summary":      c.BusinessSummary,
	}
}

// FlexString decodes JSON strings, numbers and booleans into a plain string.
// The registry API is not consistent about quoting numeric fields.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	*s = FlexString(b)
	return nil
}
