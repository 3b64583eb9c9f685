package csv

import (
	enccsv "encoding/csv"
	"io"
)

// SampleFileName is the download name of the sample file.
const SampleFileName = "sample_participants.csv"

var sampleRecords = [][]string{
	{"氏名", "会社名", "メモ"},
	{"山田太郎", "株式会社サンプル", ""},
	{"鈴木花子", "デザイン工房", "重要: VIP対応必要"},
	{"田中一郎", "マーケティング社", ""},
}

// WriteSample writes the sample import file. It starts with a UTF-8 BOM so
// spreadsheet applications open it as UTF-8.
func WriteSample(w io.Writer) error {
	if _, err := io.WriteString(w, "\uFEFF"); err != nil {
		return err
	}
	cw := enccsv.NewWriter(w)
	if err := cw.WriteAll(sampleRecords); err != nil {
		return err
	}
	return cw.Error()
}
