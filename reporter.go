package measurements

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html/template"
	"os"
	"strings"
)

// WriteReportJSON writes an ExportSummary to a JSON file.
func WriteReportJSON(path string, sum ExportSummary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Minimal JUnit reporter for CI compatibility. Each collection is a test case.
type junitTestsuite struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Time     string          `xml:"time,attr"`
	Cases    []junitTestcase `xml:"testcase"`
}

type junitTestcase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// WriteReportJUnit writes an ExportSummary to JUnit XML for CI consumers.
func WriteReportJUnit(path string, sum ExportSummary) error {
	ts := junitTestsuite{
		Name:     "measurements",
		Tests:    len(sum.Collections),
		Failures: sum.Failed,
		Time:     fmt.Sprintf("%.3f", sum.TotalElapsed.Seconds()),
	}
	for _, c := range sum.Collections {
		name := c.Key
		if name == "" {
			name = c.Source
		}
		tc := junitTestcase{
			Name:      name,
			Classname: c.Source,
			Time:      fmt.Sprintf("%.3f", c.Duration.Seconds()),
		}
		if !c.Passed {
			msg := "collection failed"
			if len(c.Errors) > 0 {
				msg = c.Errors[0]
			}
			tc.Failure = &junitFailure{
				Message: msg,
				Type:    "load",
				Body:    strings.Join(c.Errors, "\n"),
			}
		}
		ts.Cases = append(ts.Cases, tc)
	}
	data, err := xml.MarshalIndent(ts, "", "  ")
	if err != nil {
		return err
	}
	data = append([]byte(xml.Header), data...)
	return os.WriteFile(path, data, 0o644)
}

var htmlTemplate = template.Must(template.New("report").Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <title>measurements export report</title>
  <style>
    body { font-family: Arial, sans-serif; margin: 16px; background: #fafafa; }
    h1 { margin-bottom: 8px; }
    .summary { margin-bottom: 16px; }
    table { width: 100%; border-collapse: collapse; background: #fff; }
    th, td { padding: 8px 10px; border: 1px solid #e0e0e0; font-size: 14px; vertical-align: top; }
    th { background: #f5f5f5; text-align: left; }
    .status-pass { color: #2e7d32; font-weight: 600; }
    .status-fail { color: #c62828; font-weight: 600; }
    .mono { font-family: "SFMono-Regular", Consolas, "Liberation Mono", Menlo, monospace; font-size: 12px; }
  </style>
</head>
<body>
  <h1>measurements export report</h1>
  <div class="summary">
    <div>Total: {{.Total}} &nbsp; Loaded: {{.Passed}} &nbsp; Failed: {{.Failed}} &nbsp; Time: {{.TotalElapsed}}</div>
    {{if .Output}}<div>Output: <span class="mono">{{.Output}}</span> ({{.Bytes}} bytes)</div>{{end}}
  </div>
  <table>
    <thead>
      <tr>
        <th>#</th>
        <th>Key</th>
        <th>Source</th>
        <th>Status</th>
        <th>Records</th>
        <th>Duration</th>
        <th>Errors</th>
      </tr>
    </thead>
    <tbody>
      {{range $idx, $c := .Collections}}
      <tr>
        <td>{{$idx}}</td>
        <td>{{$c.Key}}</td>
        <td class="mono">{{$c.Source}}</td>
        <td>{{if $c.Passed}}<span class="status-pass">loaded</span>{{else}}<span class="status-fail">failed</span>{{end}}</td>
        <td>{{$c.Records}}</td>
        <td>{{$c.Duration}}</td>
        <td>{{range $c.Errors}}<div class="mono">{{.}}</div>{{end}}</td>
      </tr>
      {{end}}
    </tbody>
  </table>
</body>
</html>`))

// WriteReportHTML renders a simple HTML table summary.
func WriteReportHTML(path string, sum ExportSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return htmlTemplate.Execute(f, sum)
}

// WriteReport picks the reporter function by format.
func WriteReport(format, path string, sum ExportSummary) error {
	switch strings.ToLower(format) {
	case "json", "":
		return WriteReportJSON(path, sum)
	case "junit":
		return WriteReportJUnit(path, sum)
	case "html":
		return WriteReportHTML(path, sum)
	default:
		return fmt.Errorf("unknown format %s", format)
	}
}
