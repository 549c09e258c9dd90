package extraction

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
)

// actionsResponse is the JSON document the extraction model must return.
type actionsResponse struct {
	Actions []wireAction `json:"actions" jsonschema:"description=Actions in the order they were spoken"`
}

type wireAction struct {
	Type       string      `json:"type" jsonschema:"enum=log_water,enum=log_food,enum=log_symptom,enum=log_vitamin,enum=log_puqe_score,enum=add_new_vitamin,enum=unknown"`
	Details    wireDetails `json:"details"`
	Confidence float64     `json:"confidence" jsonschema:"minimum=0,maximum=1"`
}

type wireDetails struct {
	Item             string     `json:"item,omitempty" jsonschema:"description=Food or drink including the spoken quantity, e.g. 3 bananas"`
	Amount           flexString `json:"amount,omitempty"`
	Unit             string     `json:"unit,omitempty" jsonschema:"description=oz, ml, cups, mg, IU"`
	MealType         string     `json:"mealType,omitempty" jsonschema:"enum=breakfast,enum=lunch,enum=dinner,enum=snack"`
	Symptoms         []string   `json:"symptoms,omitempty"`
	Severity         string     `json:"severity,omitempty" jsonschema:"description=very mild, mild, moderate, severe, very severe"`
	VitaminName      string     `json:"vitaminName,omitempty"`
	Dosage           string     `json:"dosage,omitempty"`
	Frequency        string     `json:"frequency,omitempty"`
	TimesPerDay      *flexInt   `json:"timesPerDay,omitempty"`
	NauseaHours      *flexInt   `json:"nauseaHours,omitempty"`
	VomitingEpisodes *flexInt   `json:"vomitingEpisodes,omitempty"`
	RetchingEpisodes *flexInt   `json:"retchingEpisodes,omitempty"`
	Timestamp        string     `json:"timestamp" jsonschema:"format=date-time,description=ISO-8601 time the event happened"`
	Notes            string     `json:"notes,omitempty"`
}

// ResponseSchema returns the JSON Schema embedded in the extraction prompt.
func ResponseSchema() string {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&actionsResponse{})
	schema.Version = ""
	schema.ID = ""
	raw, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// flexString accepts both JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (flexString) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{{Type: "string"}, {Type: "number"}},
	}
}

// flexInt accepts integers encoded as numbers or numeric strings.
// Null, empty and non-numeric values decode as absent.
type flexInt struct {
	value int
	set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	*f = flexInt{}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		data = []byte(strings.TrimSpace(s))
	}
	value, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	*f = flexInt{value: int(value), set: true}
	return nil
}

func (flexInt) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Minimum: json.Number("0")}
}

func (f *flexInt) intPtr() *int {
	if f == nil || !f.set {
		return nil
	}
	v := f.value
	return &v
}
