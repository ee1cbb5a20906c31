package imagery

import (
	"fmt"
	"strings"
	"text/template"
)

var opticalScript = template.Must(template.New("optical").Parse(`//VERSION=3
function setup() {
  return {
    input: [{ bands: ["{{.Band}}", "{{.Mask}}"] }],
    output: { bands: 1, sampleType: "{{if .Visualize}}UINT8{{else}}FLOAT32{{end}}" },
    mosaicking: "ORBIT"
  };
}

function valid(s) {
{{- if eq .Mask "SCL"}}
  return s.SCL !== 3 && s.SCL !== 9 && s.SCL !== 10;
{{- else}}
  return (s.{{.Mask}} & (1 << 3)) === 0 && (s.{{.Mask}} & (1 << 4)) === 0;
{{- end}}
}

function reduce(values) {
{{- if eq .Reducer "median"}}
  values.sort(function (a, b) { return a - b; });
  var mid = Math.floor(values.length / 2);
  return values.length % 2 ? values[mid] : (values[mid - 1] + values[mid]) / 2;
{{- else}}
  var sum = 0;
  for (var i = 0; i < values.length; i++) sum += values[i];
  return sum / values.length;
{{- end}}
}

function evaluatePixel(samples) {
  var values = [];
  for (var i = 0; i < samples.length; i++) {
    if (valid(samples[i])) values.push(samples[i].{{.Band}});
  }
{{- if .Visualize}}
  if (values.length === 0) return [0];
  var v = (reduce(values) - ({{.Min}})) / ({{.Max}} - ({{.Min}}));
  return [Math.max(0, Math.min(1, v)) * 255];
{{- else}}
  if (values.length === 0) return [NaN];
  return [reduce(values)];
{{- end}}
}
`))

var rawScript = template.Must(template.New("raw").Parse(`//VERSION=3
function setup() {
  return {
    input: [{ bands: ["{{.Band}}"], units: "DN" }],
    output: { bands: 1, sampleType: "FLOAT32" },
    mosaicking: "SIMPLE"
  };
}

function evaluatePixel(sample) {
  return [sample.{{.Band}}];
}
`))

var radarScript = template.Must(template.New("radar").Parse(`//VERSION=3
function setup() {
  return {
    input: [{ bands: ["{{.Band}}"] }],
    output: { bands: 1, sampleType: "UINT8" },
    mosaicking: "SIMPLE"
  };
}

function evaluatePixel(sample) {
  var db = 10 * Math.log(sample.{{.Band}}) / Math.LN10;
  var v = (db - ({{.Min}})) / ({{.Max}} - ({{.Min}}));
  return [Math.max(0, Math.min(1, v)) * 255];
}
`))

// Evalscript renders the per-pixel script for one band. Optical bands are
// cloud masked and reduced over every acquisition in the range, and
// stretched to 8 bits for Visualized; Raw returns the digital numbers of a
// single scene. Radar bands take the first acquisition and stretch dB
// backscatter to 8 bits.
func Evalscript(sat Satellite, band, reducer string, product Product) (string, error) {
	if err := sat.CheckProduct(product); err != nil {
		return "", err
	}
	processBand, err := sat.ProcessBand(band)
	if err != nil {
		return "", err
	}
	vis := sat.VisRange(band)

	var sb strings.Builder
	switch {
	case sat.Radar:
		err = radarScript.Execute(&sb, map[string]interface{}{
			"Band": processBand,
			"Min":  vis.Min,
			"Max":  vis.Max,
		})
	case product == Raw:
		err = rawScript.Execute(&sb, map[string]interface{}{"Band": processBand})
	default:
		if err := CheckReducer(reducer); err != nil {
			return "", err
		}
		err = opticalScript.Execute(&sb, map[string]interface{}{
			"Band":      processBand,
			"Mask":      sat.MaskBand,
			"Reducer":   reducer,
			"Visualize": product == Visualized,
			"Min":       vis.Min,
			"Max":       vis.Max,
		})
	}
	if err != nil {
		return "", fmt.Errorf("failed to render evalscript: %w", err)
	}
	return sb.String(), nil
}
