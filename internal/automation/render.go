package automation

import (
	"strings"

	"github.com/roofline/roofline-backend/internal/model"
)

// RenderTemplate substitutes {placeholder} tokens literally. Known
// fields substitute even when empty; placeholders with no matching
// field are left as-is. There is no template-language evaluation.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// personalization builds the substitution data for a contact: the
// built-in fields plus any free-form custom fields.
func personalization(c *model.Contact) map[string]string {
	data := map[string]string{}
	for k, v := range c.CustomFields {
		data[k] = v
	}
	data["first_name"] = c.FirstName
	data["last_name"] = c.LastName
	data["email"] = c.Email
	data["phone"] = c.Phone
	return data
}
