// Package storage persists trade datasets.
//
// The primary format is CSV, laid out as
//
//	,<PAIR>_price,volume[,buy/sell,market/limit]
//	2021-03-29 10:43:06.6679,1795.12,0.5[,b,m]
//
// where the unnamed first column is the temporal index, written either as a
// UTC timestamp or as fractional epoch seconds depending on the dataset's
// IndexFormat. CSVStore writes atomically through a temporary file, so a
// crash never leaves a truncated dataset behind.
//
// PostgresStore mirrors a dataset into a trade_record table, appending only
// the rows the table does not hold yet.
package storage
