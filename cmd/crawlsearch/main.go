// Command crawlsearch crawls the web from seed URLs, indexes what it finds
// and serves ranked full-text search over HTTP.
package main

func main() {
	Execute()
}
