// Package ed2gosvc implements the partner protocol: the SOAP/XML codec, the
// shared-secret request validation and the HTTP client for the partner's
// registration and completion report services.
package ed2gosvc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/pkg/errors"
)

const apiNamespace = "https://api.ed2go.com"

// Outbound request and response element names.
const (
	ReqGetRegistration          = "GetRegistration"
	ReqUpdateRegistrationStatus = "UpdateRegistrationStatus"
	ReqUpdateCompletionReport   = "UpdateCompletionReport"

	RespGetRegistration          = "GetRegistrationResponse"
	RespUpdateRegistrationStatus = "UpdateRegistrationStatusResponse"
	RespUpdateCompletionReport   = "UpdateCompletionReportResponse"
)

const soapEnvelope = `<?xml version="1.0" encoding="utf-8"?>` +
	`<soap12:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" ` +
	`xmlns:xsd="http://www.w3.org/2001/XMLSchema" ` +
	`xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">` +
	`<soap12:Body>%s</soap12:Body>` +
	`</soap12:Envelope>`

// Envelope embeds the inner XML in the fixed SOAP 1.2 envelope skeleton.
func Envelope(inner string) string {
	return fmt.Sprintf(soapEnvelope, inner)
}

// XMLFromMap constructs the envelope body content from a single-key root
// mapping: the root element carries the API namespace, each inner key/value
// pair becomes one child element. Values are stringified, not escaped; the
// caller pre-escapes special characters per the partner protocol. Children
// are emitted in sorted key order for deterministic output.
func XMLFromMap(data map[string]map[string]interface{}) string {
	var b strings.Builder
	for _, root := range sortedKeys(data) {
		elements := data[root]
		b.WriteString(fmt.Sprintf("<%s xmlns=%q>", root, apiNamespace))
		for _, k := range sortedElemKeys(elements) {
			b.WriteString(fmt.Sprintf("<%s>%v</%s>", k, elements[k], k))
		}
		b.WriteString(fmt.Sprintf("</%s>", root))
	}
	return b.String()
}

// RequestData renders a complete SOAP request body for the given mapping.
func RequestData(data map[string]map[string]interface{}) string {
	return Envelope(XMLFromMap(data))
}

// RegistrationDataFromXML extracts the Registration element of a
// GetRegistration response into a nested mapping.
func RegistrationDataFromXML(xml string) (map[string]interface{}, error) {
	return decode(xml, []string{
		"Body", RespGetRegistration, "RegistrationsResponse", "Registrations", "Registration",
	})
}

// CompletionUpdateResultFromXML extracts the Result element of an
// UpdateCompletionReport response: Success, Code, Message.
func CompletionUpdateResultFromXML(xml string) (map[string]interface{}, error) {
	return decode(xml, []string{"Body", RespUpdateCompletionReport, "Response", "Result"})
}

// RegistrationStatusResultFromXML extracts the Result element of an
// UpdateRegistrationStatus response.
func RegistrationStatusResultFromXML(xml string) (map[string]interface{}, error) {
	return decode(xml, []string{"Body", RespUpdateRegistrationStatus, "Response", "Result"})
}

// decode parses the XML and walks the element path by local name, namespace
// prefixes stripped, converting the target node and its descendants into a
// nested mapping.
func decode(xml string, path []string) (map[string]interface{}, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return nil, errors.Wrap(err, "ed2go: parsing response XML")
	}
	el := doc.Root()
	if el == nil {
		return nil, errors.New("ed2go: empty response XML")
	}
	for _, tag := range path {
		el = childByLocalName(el, tag)
		if el == nil {
			return nil, errors.Errorf("ed2go: element %s not found in response", tag)
		}
	}
	return mapFromElement(el), nil
}

func childByLocalName(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			return child
		}
	}
	return nil
}

func mapFromElement(el *etree.Element) map[string]interface{} {
	data := make(map[string]interface{})
	for _, child := range el.ChildElements() {
		if len(child.ChildElements()) > 0 {
			data[child.Tag] = mapFromElement(child)
		} else {
			data[child.Tag] = strings.TrimSpace(child.Text())
		}
	}
	return data
}

func sortedKeys(m map[string]map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedElemKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
