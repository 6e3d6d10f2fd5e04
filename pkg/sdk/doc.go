// Package cwfsearch embeds the catalog search pipeline in a Go program
// without running the HTTP service. It talks to the same Redis or Valkey
// search index the service uses.
//
//	client, _ := cwfsearch.New(ctx,
//	    cwfsearch.WithRedis("localhost:6379", ""),
//	    cwfsearch.WithEmbedder(myEmbedder),
//	    cwfsearch.WithVectorDimensions(1536),
//	)
//	defer client.Close()
//
//	resp, _ := client.Search(ctx, "org-1", "hot sauce under 30 but not spicy",
//	    cwfsearch.Types("product"),
//	    cwfsearch.Limit(5),
//	)
//	for _, r := range resp.Results {
//	    fmt.Println(r.Name, r.Relevance)
//	}
//
// Queries are parsed locally with ParseQuery, which needs no connection.
package cwfsearch
