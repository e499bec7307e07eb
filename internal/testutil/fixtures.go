package testutil

import "github.com/roach88/marcq/internal/marc"

// SampleLeader is the leader used by SampleRecord.
const SampleLeader = "00000cam a2200000 a 4500"

// SampleRecord returns a small bibliographic record exercising control
// fields, repeated tags, non-ASCII text, a $0 subfield and an 880 linkage.
//
// A fresh record is built on every call so tests may modify it freely.
func SampleRecord() *marc.Record {
	return marc.NewRecord(SampleLeader,
		marc.NewControlField("001", "123456"),
		marc.NewControlField("005", "20240101120000.0"),
		marc.NewControlField("008", "240101s2024    fi ||||| |||| 00| 0 fin d"),
		marc.NewDataField("020", " ", " ",
			marc.Subfield{Code: "a", Value: "9789510000000"},
		),
		marc.NewDataField("100", "1", " ",
			marc.Subfield{Code: "a", Value: "Kivi, Aleksis,"},
			marc.Subfield{Code: "d", Value: "1834-1872."},
		),
		marc.NewDataField("245", "1", "0",
			marc.Subfield{Code: "6", Value: "880-01"},
			marc.Subfield{Code: "a", Value: "Seitsemän veljestä /"},
			marc.Subfield{Code: "c", Value: "Aleksis Kivi."},
		),
		marc.NewDataField("650", " ", "7",
			marc.Subfield{Code: "a", Value: "romaanit"},
			marc.Subfield{Code: "2", Value: "yso/fin"},
			marc.Subfield{Code: "0", Value: "http://www.yso.fi/onto/yso/p1234"},
		),
		marc.NewDataField("650", " ", "7",
			marc.Subfield{Code: "a", Value: "kirjallisuus"},
			marc.Subfield{Code: "2", Value: "yso/fin"},
		),
		marc.NewDataField("880", "1", "0",
			marc.Subfield{Code: "6", Value: "245-01/(N"},
			marc.Subfield{Code: "a", Value: "Семеро братьев"},
		),
	)
}
