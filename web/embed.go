// Package web embeds the printable documents rendered by the service.
package web

import "embed"

// CertificateTemplate is the path of the sacrament certificate inside Templates.
const CertificateTemplate = "templates/certificates/certificate.html"

// Templates holds the certificate layouts fed to the PDF renderer.
//
//go:embed templates/certificates/*.html
var Templates embed.FS
