package middleware

import (
	"bytes"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
)

var (
	markup = bluemonday.StrictPolicy()

	bodyMethods = map[string]bool{
		http.MethodPost:  true,
		http.MethodPut:   true,
		http.MethodPatch: true,
	}
)

// SanitizeJSON rewrites JSON request bodies so every top-level string is
// plain text. Form posts and bodiless requests pass through untouched.
func SanitizeJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !bodyMethods[c.Request.Method] || !strings.HasPrefix(c.ContentType(), "application/json") {
			c.Next()
			return
		}

		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid body"})
			return
		}
		if len(bytes.TrimSpace(raw)) == 0 {
			replaceBody(c, raw)
			c.Next()
			return
		}

		fields := map[string]any{}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Malformed JSON"})
			return
		}
		for name, v := range fields {
			if s, ok := v.(string); ok {
				fields[name] = plainText(s)
			}
		}

		clean, err := json.Marshal(fields)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Malformed JSON"})
			return
		}
		replaceBody(c, clean)
		c.Next()
	}
}

// plainText drops tags and decodes the entities the policy escapes, so
// O'Brien stays O'Brien.
func plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(markup.Sanitize(s)))
}

func replaceBody(c *gin.Context, b []byte) {
	c.Request.Body = io.NopCloser(bytes.NewReader(b))
	c.Request.ContentLength = int64(len(b))
}
