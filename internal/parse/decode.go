package parse

import (
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// ErrDecode reports that a request carried no usable command payload.
var ErrDecode = errors.New("no command payload")

// ParamName is the query/form parameter carrying the raw command string.
const ParamName = "Data"

var dataRe = regexp.MustCompile(ParamName + `=([^&]*)`)

// artifactReplacer strips control sequences that buggy firmware embeds in
// the payload: literal CR/LF bytes and their escaped textual forms.
var artifactReplacer = strings.NewReplacer(
	"$0D$0A", "",
	"$0D", "",
	"$0A", "",
	"\r", "",
	"\n", "",
)

// StripArtifacts removes firmware control-sequence artifacts wherever they
// appear in the string.
func StripArtifacts(s string) string {
	return artifactReplacer.Replace(s)
}

// ExtractCommand pulls the raw command string out of a device request.
// Read-style requests carry it in the Data query parameter, write-style
// requests in the Data form field. Some firmware revisions mangle the key
// itself (e.g. "|Data"), so the lookup falls back to scanning all parameter
// keys for one containing the expected name, and finally to a regex scan of
// the raw URL.
func ExtractCommand(r *http.Request) (string, error) {
	var raw string

	if r.Method == http.MethodPost {
		raw = r.PostFormValue(ParamName)
		if raw == "" {
			for k, vs := range r.PostForm {
				if strings.Contains(k, ParamName) && len(vs) > 0 && vs[0] != "" {
					raw = vs[0]
					break
				}
			}
		}
	}

	if raw == "" {
		q := r.URL.Query()
		raw = q.Get(ParamName)
		if raw == "" {
			for k, vs := range q {
				if strings.Contains(k, ParamName) && len(vs) > 0 && vs[0] != "" {
					raw = vs[0]
					break
				}
			}
		}
	}

	if raw == "" {
		if m := dataRe.FindStringSubmatch(r.URL.String()); m != nil {
			if dec, err := url.QueryUnescape(m[1]); err == nil {
				raw = dec
			} else {
				raw = m[1]
			}
		}
	}

	raw = StripArtifacts(raw)
	if raw == "" {
		return "", ErrDecode
	}
	return raw, nil
}
