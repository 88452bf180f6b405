// Package checkpoint turns a previously written dataset into a resume point.
//
// A State holds the records already collected (the prefix) and the cursor to
// continue from: the last record's timestamp in nanoseconds. With no prior
// dataset the cursor is zero, i.e. the beginning of the trade history.
//
//	state, err := checkpoint.LoadFile("XETHZEUR", "XETHZEUR")
//	if err != nil {
//		// *errors.MalformedCheckpointError: refuse to run
//	}
//	result := engine.Run(ctx, state.Cursor)
//
// Loading never writes to disk.
package checkpoint
