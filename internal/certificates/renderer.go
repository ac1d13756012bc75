// Package certificates renders sacrament certificates to PDF and serves the
// stored files.
package certificates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/ecclesia-records/ecclesia/internal/sacraments"
	"github.com/ecclesia-records/ecclesia/web"
)

// PDFClient exposes the subset of the report client used by the renderer.
type PDFClient interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Line is one type-specific row on the certificate.
type Line struct {
	Label string
	Value string
}

// Document is the template input.
type Document struct {
	Title     string
	Diocese   string
	Parish    string
	Subject   string
	Date      time.Time
	Location  string
	Officiant string
	Lines     []Line
	Registry  string
	RecordID  string
	IssuedAt  time.Time
}

// Renderer turns sacraments into certificate PDFs.
type Renderer struct {
	tpl    *template.Template
	client PDFClient
	now    func() time.Time
}

// NewRenderer parses the certificate template and wires the PDF client.
func NewRenderer(client PDFClient) (*Renderer, error) {
	if client == nil {
		return nil, errors.New("certificates renderer: pdf client required")
	}
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2 January 2006")
		},
	}
	tpl, err := template.New("certificate.html").Funcs(funcMap).ParseFS(web.Templates, web.CertificateTemplate)
	if err != nil {
		return nil, err
	}
	return &Renderer{tpl: tpl, client: client, now: func() time.Time { return time.Now().UTC() }}, nil
}

// HTML executes the template for s.
func (r *Renderer) HTML(s sacraments.Sacrament) (string, error) {
	if r == nil || r.tpl == nil {
		return "", errors.New("certificates renderer not initialised")
	}
	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, NewDocument(s, r.now())); err != nil {
		return "", fmt.Errorf("certificates: execute template: %w", err)
	}
	return buf.String(), nil
}

// Render builds the HTML and converts it to PDF.
func (r *Renderer) Render(ctx context.Context, s sacraments.Sacrament) ([]byte, error) {
	html, err := r.HTML(s)
	if err != nil {
		return nil, err
	}
	pdf, err := r.client.RenderHTML(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("certificates: render pdf: %w", err)
	}
	return pdf, nil
}

// NewDocument maps a sacrament onto the certificate layout.
func NewDocument(s sacraments.Sacrament, issuedAt time.Time) Document {
	doc := Document{
		Title:     "CERTIFICATE OF " + s.Type.Title(),
		Diocese:   s.DioceseID,
		Parish:    s.ParishID,
		Subject:   s.FullName(),
		Date:      s.Date,
		Location:  s.Location,
		Officiant: s.OfficiantName,
		RecordID:  s.ID,
		IssuedAt:  issuedAt,
	}
	if s.RegistryNumber != nil {
		doc.Registry = *s.RegistryNumber
	}
	d := s.Details
	switch {
	case d.Baptism != nil:
		doc.Lines = lines(
			"Baptism", d.Baptism.BaptismType,
			"Father", d.Baptism.FatherName,
			"Mother", d.Baptism.MotherName,
			"Godfather", d.Baptism.GodfatherName,
			"Godmother", d.Baptism.GodmotherName,
		)
	case d.Confirmation != nil:
		doc.Lines = lines(
			"Confirmation name", d.Confirmation.ConfirmationName,
			"Sponsor", d.Confirmation.SponsorName,
			"Bishop", d.Confirmation.Bishop,
		)
	case d.Marriage != nil:
		doc.Subject = d.Marriage.GroomName() + " & " + d.Marriage.BrideName()
		doc.Lines = lines(
			"Groom", d.Marriage.GroomName(),
			"Bride", d.Marriage.BrideName(),
			"First witness", d.Marriage.Witness1Name,
			"Second witness", d.Marriage.Witness2Name,
			"Civil registration", d.Marriage.CivilRegistrationNumber,
		)
	case d.HolyOrders != nil:
		doc.Lines = lines(
			"Order", d.HolyOrders.OrderType,
			"Ordaining bishop", d.HolyOrders.Bishop,
			"Incardination", d.HolyOrders.Incardination,
		)
	case d.Anointing != nil:
		doc.Lines = lines("Reason", d.Anointing.Reason)
	}
	return doc
}

// lines pairs labels with values, skipping blanks.
func lines(pairs ...string) []Line {
	out := make([]Line, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if v := strings.TrimSpace(pairs[i+1]); v != "" {
			out = append(out, Line{Label: pairs[i], Value: v})
		}
	}
	return out
}
