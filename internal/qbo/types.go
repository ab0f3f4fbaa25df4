package qbo

import "fmt"

// ─── REPORT SHAPES ────────────────────────────────────────────────────────────

// ColData is a single cell of a report row. Only donor cells carry an id.
type ColData struct {
	Value string `json:"value"`
	ID    string `json:"id,omitempty"`
}

// Column is one declared report column. Item columns carry MetaData with a
// Name:"ID" entry whose Value is the item id; the leading "name" column and
// the trailing "Total" column do not.
type Column struct {
	ColTitle string `json:"ColTitle"`
	ColType  string `json:"ColType"`
	MetaData []struct {
		Name  string `json:"Name"`
		Value string `json:"Value"`
	} `json:"MetaData,omitempty"`
}

// Row is one physical report row. QBO serves three shapes through the same
// object: a flat data row (ColData only), a sectioned donor row (Type
// "Section" with Header/Rows/Summary), and group-tagged total rows. Group
// rows are filtered out before parsing; the remaining two shapes are resolved
// once by the donation package.
type Row struct {
	ColData []ColData `json:"ColData,omitempty"`
	Type    string    `json:"type,omitempty"`
	Group   string    `json:"group,omitempty"`
	Header  *struct {
		ColData []ColData `json:"ColData"`
	} `json:"Header,omitempty"`
	Rows *struct {
		Row []Row `json:"Row"`
	} `json:"Rows,omitempty"`
	Summary *struct {
		ColData []ColData `json:"ColData"`
	} `json:"Summary,omitempty"`
}

// SalesReport is the CustomerSales report summarised by products and services.
type SalesReport struct {
	Header struct {
		Time        string `json:"Time"`
		ReportName  string `json:"ReportName"`
		StartPeriod string `json:"StartPeriod"`
		EndPeriod   string `json:"EndPeriod"`
		Currency    string `json:"Currency"`
	} `json:"Header"`
	Columns struct {
		Column []Column `json:"Column"`
	} `json:"Columns"`
	Rows struct {
		Row []Row `json:"Row"`
	} `json:"Rows"`
}

// ─── QUERY SHAPES ─────────────────────────────────────────────────────────────

// Address is a QBO billing address. Only Line1 is guaranteed.
type Address struct {
	Line1                  string `json:"Line1"`
	Line2                  string `json:"Line2,omitempty"`
	Line3                  string `json:"Line3,omitempty"`
	City                   string `json:"City,omitempty"`
	PostalCode             string `json:"PostalCode,omitempty"`
	CountrySubDivisionCode string `json:"CountrySubDivisionCode,omitempty"`
}

// Customer is the subset of a QBO customer the receipt pipeline needs.
type Customer struct {
	ID          string   `json:"Id"`
	DisplayName string   `json:"DisplayName"`
	BillAddr    *Address `json:"BillAddr,omitempty"`

	PrimaryEmailAddr *struct {
		Address string `json:"Address"`
	} `json:"PrimaryEmailAddr,omitempty"`
}

// CustomerQueryResult is one page of a customer query. An exhausted page comes
// back with an empty QueryResponse (no Customer key at all).
type CustomerQueryResult struct {
	QueryResponse struct {
		Customer   []Customer `json:"Customer"`
		StartPos   int        `json:"startPosition"`
		MaxResults int        `json:"maxResults"`
	} `json:"QueryResponse"`
	Time string `json:"time"`
}

// Item is a sellable/donatable product line, an immutable snapshot per fetch.
type Item struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type itemQueryResult struct {
	QueryResponse struct {
		Item []struct {
			ID      string `json:"Id"`
			Name    string `json:"Name"`
			SubItem bool   `json:"SubItem"`
		} `json:"Item"`
	} `json:"QueryResponse"`
}

// CompanyInfo is the donee's company record, flattened.
type CompanyInfo struct {
	CompanyName    string
	CompanyAddress string
	Country        string
}

type companyInfoQueryResult struct {
	QueryResponse struct {
		CompanyInfo []struct {
			CompanyName string   `json:"CompanyName"`
			LegalName   string   `json:"LegalName"`
			CompanyAddr *Address `json:"CompanyAddr,omitempty"`
			LegalAddr   *Address `json:"LegalAddr,omitempty"`
			Country     string   `json:"Country"`
		} `json:"CompanyInfo"`
	} `json:"QueryResponse"`
}

// ─── FAULT ────────────────────────────────────────────────────────────────────

// faultBody is the top-level error shape QBO returns in place of a report or
// query result.
type faultBody struct {
	Fault *struct {
		Type  string `json:"type"`
		Error []struct {
			Message string `json:"Message"`
			Detail  string `json:"Detail"`
			Code    string `json:"code"`
		} `json:"Error"`
	} `json:"Fault"`
}

// FaultError is returned when QBO answers with a Fault body. The remote
// message is carried so callers can surface it for diagnosis.
type FaultError struct {
	Type    string
	Message string
	Detail  string
}

func (e *FaultError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("qbo: fault %s: %s: %s", e.Type, e.Message, e.Detail)
	}
	return fmt.Sprintf("qbo: fault %s: %s", e.Type, e.Message)
}

func (b *faultBody) toError() *FaultError {
	e := &FaultError{Type: b.Fault.Type}
	if len(b.Fault.Error) > 0 {
		e.Message = b.Fault.Error[0].Message
		e.Detail = b.Fault.Error[0].Detail
	}
	return e
}
