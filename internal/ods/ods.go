// Package ods writes statistics tables as OpenDocument spreadsheets, one
// sheet per table.
package ods

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
)

const mimeType = "application/vnd.oasis.opendocument.spreadsheet"

// Table is a named grid. Cells hold strings, ints or float64s; numbers are
// written as numeric cells so spreadsheets can sum them.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Write encodes tables as an ODS package
func Write(w io.Writer, tables ...Table) error {
	zw := zip.NewWriter(w)

	// mimetype must be the first entry and stored uncompressed
	mw, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return fmt.Errorf("create mimetype: %w", err)
	}
	if _, err := io.WriteString(mw, mimeType); err != nil {
		return fmt.Errorf("write mimetype: %w", err)
	}

	entries := []struct {
		name string
		data []byte
	}{
		{"META-INF/manifest.xml", []byte(manifest)},
		{"content.xml", content(tables)},
	}
	for _, e := range entries {
		fw, err := zw.Create(e.name)
		if err != nil {
			return fmt.Errorf("create %s: %w", e.name, err)
		}
		if _, err := fw.Write(e.data); err != nil {
			return fmt.Errorf("write %s: %w", e.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close package: %w", err)
	}
	return nil
}

// WriteFile writes tables to path
func WriteFile(path string, tables ...Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create spreadsheet: %w", err)
	}
	defer f.Close()

	if err := Write(f, tables...); err != nil {
		return err
	}
	return f.Close()
}

const manifest = `<?xml version="1.0" encoding="UTF-8"?>
<manifest:manifest xmlns:manifest="urn:oasis:names:tc:opendocument:xmlns:manifest:1.0" manifest:version="1.2">
  <manifest:file-entry manifest:full-path="/" manifest:media-type="application/vnd.oasis.opendocument.spreadsheet"/>
  <manifest:file-entry manifest:full-path="content.xml" manifest:media-type="text/xml"/>
</manifest:manifest>
`

func content(tables []Table) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
  xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0"
  xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0"
  office:version="1.2">
<office:body>
<office:spreadsheet>
`)
	for _, t := range tables {
		fmt.Fprintf(&buf, "<table:table table:name=\"%s\">\n", escape(t.Name))
		if len(t.Header) > 0 {
			header := make([]any, len(t.Header))
			for i, h := range t.Header {
				header[i] = h
			}
			writeRow(&buf, header)
		}
		for _, row := range t.Rows {
			writeRow(&buf, row)
		}
		buf.WriteString("</table:table>\n")
	}
	buf.WriteString("</office:spreadsheet>\n</office:body>\n</office:document-content>\n")
	return buf.Bytes()
}

func writeRow(buf *bytes.Buffer, cells []any) {
	buf.WriteString("<table:table-row>")
	for _, c := range cells {
		switch v := c.(type) {
		case int:
			fmt.Fprintf(buf, `<table:table-cell office:value-type="float" office:value="%d"><text:p>%d</text:p></table:table-cell>`, v, v)
		case float64:
			s := strconv.FormatFloat(v, 'f', -1, 64)
			fmt.Fprintf(buf, `<table:table-cell office:value-type="float" office:value="%s"><text:p>%s</text:p></table:table-cell>`, s, s)
		default:
			fmt.Fprintf(buf, `<table:table-cell office:value-type="string"><text:p>%s</text:p></table:table-cell>`, escape(fmt.Sprint(v)))
		}
	}
	buf.WriteString("</table:table-row>\n")
}

func escape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
