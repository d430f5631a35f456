package classification

// Keyword set names.
const (
	SetFraud     = "fraud"
	SetRefund    = "refund"
	SetDebit     = "debit"
	SetDuplicate = "duplicate"
)

// DefaultKeywordSets returns the phrase lists used by the rule classifier.
// Each phrase is matched case-insensitively on word boundaries.
func DefaultKeywordSets() []KeywordSet {
	return []KeywordSet{
		{
			Name: SetFraud,
			Phrases: []string{
				"fraud",
				"fraudulent",
				"unauthorized",
				"unauthorised",
				"didn't make this",
				"did not make",
				"not made this payment",
				"didn't authorize",
				"did not authorize",
				"don't recognize",
				"do not recognize",
				"scam",
				"suspicious",
				"stolen card",
				"hacked",
			},
		},
		{
			Name: SetRefund,
			Phrases: []string{
				"waiting for refund",
				"waiting for my refund",
				"refund pending",
				"refund not received",
				"still not refunded",
				"still waiting",
				"refund for cancelled",
				"refund for canceled",
				"refund",
				"return initiated",
			},
		},
		{
			Name: SetDebit,
			Phrases: []string{
				"debited",
				"deducted",
				"money cut",
				"amount cut",
				"charged",
				"not received",
				"payment stuck",
				"failed",
			},
		},
		{
			Name: SetDuplicate,
			Phrases: []string{
				"charged twice",
				"duplicate charge",
				"double charge",
				"double charged",
				"two debit messages",
				"duplicate transfer",
				"duplicate upi",
				"two upi debit",
				"duplicate payment",
				"same payment",
				"minutes apart",
			},
		},
	}
}
