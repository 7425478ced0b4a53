// Package dbconn wraps a MySQL *sql.DB with statement logging and a few
// insert/query helpers.
//
// Statements are logged at debug level with their arguments. Query results
// are returned as []Row (column name to value) with []byte values converted
// to strings.
//
//	conn, err := dbconn.Open(dbconn.Config{
//		Host: "127.0.0.1", Port: 3306,
//		User: "app", Password: secret, Database: "crawl",
//	}, &logger)
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	// INSERT ... ON DUPLICATE KEY UPDATE status=VALUES(status)
//	_, err = conn.InsertInto(ctx, "pages", map[string]any{
//		"url": url, "status": 200,
//	}, []string{"url"})
package dbconn
