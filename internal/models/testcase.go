package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// TestCase is one generated QA case. JSON keys follow the generation prompt.
type TestCase struct {
	ID                string         `json:"id,omitempty"`
	Frame             string         `json:"frame,omitempty"`
	Feature           string         `json:"feature,omitempty"`
	Objetivo          string         `json:"objetivo,omitempty"`
	Precondiciones    []string       `json:"precondiciones,omitempty"`
	Pasos             []string       `json:"pasos,omitempty"`
	DatosPrueba       map[string]any `json:"datos_prueba,omitempty"`
	ResultadoEsperado string         `json:"resultado_esperado,omitempty"`
	Negativo          []string       `json:"negativo,omitempty"`
	Bordes            []string       `json:"bordes,omitempty"`
	Accesibilidad     []string       `json:"accesibilidad,omitempty"`
	Prioridad         string         `json:"prioridad,omitempty"`
	Severidad         string         `json:"severidad,omitempty"`
	Dispositivo       string         `json:"dispositivo,omitempty"`
	Dependencias      []string       `json:"dependencias,omitempty"`
	Observaciones     string         `json:"observaciones,omitempty"`
	ImageURL          string         `json:"image_url,omitempty"`
}

// Clone copies the case together with its lists. Values nested inside
// DatosPrueba stay shared.
func (tc TestCase) Clone() TestCase {
	tc.Precondiciones = slices.Clone(tc.Precondiciones)
	tc.Pasos = slices.Clone(tc.Pasos)
	tc.Negativo = slices.Clone(tc.Negativo)
	tc.Bordes = slices.Clone(tc.Bordes)
	tc.Accesibilidad = slices.Clone(tc.Accesibilidad)
	tc.Dependencias = slices.Clone(tc.Dependencias)
	tc.DatosPrueba = maps.Clone(tc.DatosPrueba)
	return tc
}

// rawCase mirrors TestCase with every field left undecoded
type rawCase struct {
	ID                json.RawMessage `json:"id"`
	Frame             json.RawMessage `json:"frame"`
	Feature           json.RawMessage `json:"feature"`
	Objetivo          json.RawMessage `json:"objetivo"`
	Precondiciones    json.RawMessage `json:"precondiciones"`
	Pasos             json.RawMessage `json:"pasos"`
	DatosPrueba       json.RawMessage `json:"datos_prueba"`
	ResultadoEsperado json.RawMessage `json:"resultado_esperado"`
	Negativo          json.RawMessage `json:"negativo"`
	Bordes            json.RawMessage `json:"bordes"`
	Accesibilidad     json.RawMessage `json:"accesibilidad"`
	Prioridad         json.RawMessage `json:"prioridad"`
	Severidad         json.RawMessage `json:"severidad"`
	Dispositivo       json.RawMessage `json:"dispositivo"`
	Dependencias      json.RawMessage `json:"dependencias"`
	Observaciones     json.RawMessage `json:"observaciones"`
	ImageURL          json.RawMessage `json:"image_url"`
}

// UnmarshalJSON decodes a case leniently: scalars of any type become strings,
// a single string is accepted where a list is expected, and non-object
// test data is kept under the "valor" key.
func (c *TestCase) UnmarshalJSON(data []byte) error {
	var raw rawCase
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = TestCase{
		ID:                flexString(raw.ID),
		Frame:             flexString(raw.Frame),
		Feature:           flexString(raw.Feature),
		Objetivo:          flexString(raw.Objetivo),
		Precondiciones:    flexStrings(raw.Precondiciones),
		Pasos:             flexStrings(raw.Pasos),
		DatosPrueba:       flexObject(raw.DatosPrueba),
		ResultadoEsperado: flexString(raw.ResultadoEsperado),
		Negativo:          flexStrings(raw.Negativo),
		Bordes:            flexStrings(raw.Bordes),
		Accesibilidad:     flexStrings(raw.Accesibilidad),
		Prioridad:         flexString(raw.Prioridad),
		Severidad:         flexString(raw.Severidad),
		Dispositivo:       flexString(raw.Dispositivo),
		Dependencias:      flexStrings(raw.Dependencias),
		Observaciones:     flexString(raw.Observaciones),
		ImageURL:          flexString(raw.ImageURL),
	}
	return nil
}

func flexString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return strings.TrimSpace(FormatValue(v))
}

func flexStrings(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		items = []any{v}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(FormatValue(item)); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func flexObject(raw json.RawMessage) map[string]any {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	if obj, ok := v.(map[string]any); ok {
		return obj
	}
	if s := strings.TrimSpace(FormatValue(v)); s != "" {
		return map[string]any{"valor": s}
	}
	return nil
}

// FormatValue renders a decoded JSON value as display text.
// Objects render as "key: value" pairs in key order.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, FormatValue(item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+FormatValue(t[k]))
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprintf("%v", t)
	}
}

// CasesBundle is the output of one unit (or one fallback frame)
type CasesBundle struct {
	PageName  string     `json:"page_name"`
	FrameName string     `json:"frame_name"`
	NodeID    string     `json:"node_id"`
	Cases     []TestCase `json:"cases"`
}
