package gateway

import (
	"bytes"
	"encoding/json"
	"mime"
	"strings"
)

// Format is the serialization a gateway response was detected as.
type Format int

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatXML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatXML:
		return "xml"
	default:
		return "unknown"
	}
}

// Response is a raw gateway reply tagged with its detected format.
// Body is always kept so parse failures can report it.
type Response struct {
	StatusCode  int
	ContentType string
	Format      Format
	Body        []byte
}

// detectFormat prefers the declared media type and falls back to sniffing
// the first non-space byte when the header is missing or generic.
func detectFormat(contentType string, body []byte) Format {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case strings.HasSuffix(mediaType, "json"):
			return FormatJSON
		case strings.HasSuffix(mediaType, "xml"):
			return FormatXML
		}
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return FormatUnknown
	}
	switch trimmed[0] {
	case '{', '[':
		return FormatJSON
	case '<':
		return FormatXML
	default:
		return FormatUnknown
	}
}

func (r *Response) malformed(op string, err error) *MalformedResponseError {
	return &MalformedResponseError{
		Op:          op,
		StatusCode:  r.StatusCode,
		ContentType: r.ContentType,
		Body:        r.Body,
		Err:         err,
	}
}

// Flag decodes the gateway's success indicator, which arrives either as a
// JSON boolean or as the strings "true"/"false". Anything else is false.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = Flag(strings.EqualFold(strings.TrimSpace(s), "true"))
		return nil
	}
	*f = false
	return nil
}
