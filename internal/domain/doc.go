// Package domain models hourly air-quality measurements from the Guangzhou
// municipal monitoring network and the pure transforms that turn raw source
// files into a queryable long-format table.
//
// # Data Source
//
// Measurements arrive as one delimited text file per day and collection
// unit. Each file has a header row whose first three columns are fixed and
// whose remaining columns are monitoring station ids:
//
//	date,hour,type,1345A,1346A,...
//	20230101,0,AQI,41,38,...
//	20230101,0,PM2.5,35.2,—,...
//
// One row holds one pollutant type for one hour across every station
// (wide format). Files may start with a UTF-8 byte order mark.
//
// # Conventions
//
// Time format:
//
//	date is an 8-digit YYYYMMDD string, hour is 0-23 and may be written
//	without its leading zero ("5"). The timestamp is the concatenation
//	date + zero-padded hour parsed as YYYYMMDDHH in the configured source
//	time zone. A row whose date or hour cannot be parsed is excluded; the
//	rest of the file survives. See [ParseTimestamp].
//
// Values:
//
//	Cells are decimal numbers. Empty cells and any non-numeric sentinel
//	("—", "NA", "-") become an explicit missing [Value], never zero. NaN and
//	infinities are treated as missing as well. See [ParseValue].
//
// Pollutant type:
//
//	Free-form label taken verbatim from the "type" column, e.g. AQI, PM2.5,
//	PM2.5_24h, PM10, SO2, NO2, O3, O3_8h, CO. Labels are case-sensitive.
//
// # Stages
//
// [Normalizer] derives timestamps and numeric values from [RawTable] rows,
// [Reshape] pivots wide records into one [LongRecord] per station column,
// [Join] inner-joins long records to the [Registry] and [Filter] selects the
// rows a [Query] asks for. [ColorAllocator] hands out series colours for one
// session.
//
// The join is an inner join: a station column without a registry entry is
// dropped and counted in [JoinReport], it never yields a fabricated row.
package domain
