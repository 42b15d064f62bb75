// Package extract turns downloaded CMS distributions into header-keyed
// tables.
//
// A distribution is usually a zip archive holding one or more workbooks or
// delimited text files, sometimes with a nested archive per provider type.
// Extractor walks the archive, decodes .xlsx sheets with excelize and
// .csv/.txt files with encoding/csv, and finds each table's header row
// using hints supplied by the caller. Entries that fail to decode are
// reported and skipped; the rest of the archive is still used.
package extract
