package index

// Posting records how often a term occurs in one document.
type Posting struct {
	DocID     int
	Frequency int
}

type PostingList []Posting
