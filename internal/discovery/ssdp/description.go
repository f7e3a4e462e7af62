package ssdp

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// Description holds the UPnP device description fields the listener uses.
type Description struct {
	DeviceType       string `xml:"deviceType"`
	FriendlyName     string `xml:"friendlyName"`
	Manufacturer     string `xml:"manufacturer"`
	ManufacturerURL  string `xml:"manufacturerURL"`
	ModelDescription string `xml:"modelDescription"`
	ModelName        string `xml:"modelName"`
	ModelURL         string `xml:"modelURL"`
	ModelNumber      string `xml:"modelNumber"`
	UDN              string `xml:"UDN"`
}

// DeviceID is the UDN without its "uuid:" prefix.
func (d Description) DeviceID() string {
	return strings.TrimPrefix(d.UDN, "uuid:")
}

// DescriptionParser turns a device description document into a Description.
type DescriptionParser interface {
	Parse(body []byte) (Description, error)
}

// TagParser extracts each field from the first <tag>...</tag> pair in the
// document. It does not understand XML structure, which is enough for the
// small, flat documents televisions serve, and it tolerates documents that
// are not well-formed.
type TagParser struct{}

var _ DescriptionParser = TagParser{}

// Parse implements DescriptionParser.
func (TagParser) Parse(body []byte) (Description, error) {
	d := Description{
		DeviceType:       textBetweenTags(body, "deviceType"),
		FriendlyName:     textBetweenTags(body, "friendlyName"),
		Manufacturer:     textBetweenTags(body, "manufacturer"),
		ManufacturerURL:  textBetweenTags(body, "manufacturerURL"),
		ModelDescription: textBetweenTags(body, "modelDescription"),
		ModelName:        textBetweenTags(body, "modelName"),
		ModelURL:         textBetweenTags(body, "modelURL"),
		ModelNumber:      textBetweenTags(body, "modelNumber"),
		UDN:              textBetweenTags(body, "UDN"),
	}
	if d.DeviceID() == "" {
		return d, fmt.Errorf("%w: no UDN", ErrInvalidDescription)
	}
	return d, nil
}

func textBetweenTags(body []byte, tag string) string {
	open := []byte("<" + tag + ">")
	start := bytes.Index(body, open)
	if start < 0 {
		return ""
	}
	rest := body[start+len(open):]
	end := bytes.Index(rest, []byte("</"+tag+">"))
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(string(rest[:end]))
}

// XMLParser decodes the document with encoding/xml and reads the root
// device. Unlike TagParser it rejects malformed documents.
type XMLParser struct{}

var _ DescriptionParser = XMLParser{}

// Parse implements DescriptionParser.
func (XMLParser) Parse(body []byte) (Description, error) {
	var root struct {
		Device Description `xml:"device"`
	}
	if err := xml.Unmarshal(body, &root); err != nil {
		return Description{}, fmt.Errorf("%w: %w", ErrInvalidDescription, err)
	}
	d := root.Device
	d.UDN = strings.TrimSpace(d.UDN)
	if d.DeviceID() == "" {
		return d, fmt.Errorf("%w: no UDN", ErrInvalidDescription)
	}
	return d, nil
}
