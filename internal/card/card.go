// internal/card/card.go
package card

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

// Suit identifies one of the four french suits. The numeric values are
// significant: they are the two-bit suit codes of the wire encoding.
type Suit uint8

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
)

var suitNames = [...]string{"hearts", "diamonds", "clubs", "spades"}
var suitSymbols = [...]string{"♥", "♦", "♣", "♠"}

// String returns the lowercase suit name ("hearts", ...).
func (s Suit) String() string {
	if int(s) < len(suitNames) {
		return suitNames[s]
	}
	return fmt.Sprintf("suit(%d)", uint8(s))
}

// ParseSuit converts a lowercase suit name back into a Suit.
func ParseSuit(name string) (Suit, error) {
	for i, n := range suitNames {
		if n == name {
			return Suit(i), nil
		}
	}
	return 0, fmt.Errorf("unknown suit %q", name)
}

// MarshalJSON encodes the suit as its name so snapshots and wire
// payloads stay readable.
func (s Suit) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Suit) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSuit(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Rank is the card rank, 2 through 14 (11=Jack, 12=Queen, 13=King, 14=Ace).
type Rank uint8

const (
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
	Ace   Rank = 14
)

const (
	MinRank Rank = 2
	MaxRank Rank = 14
)

// Valid reports whether the rank is within the playable range.
func (r Rank) Valid() bool {
	return r >= MinRank && r <= MaxRank
}

// String returns the short rank label ("2".."10", "J", "Q", "K", "A").
func (r Rank) String() string {
	switch r {
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	default:
		return fmt.Sprintf("%d", uint8(r))
	}
}

// ErrInvalidRank is returned by Decode when the rank bits fall outside 2..14.
type ErrInvalidRank struct {
	Rank uint8
}

func (e ErrInvalidRank) Error() string {
	return fmt.Sprintf("invalid_rank: %d", e.Rank)
}

// Card is an immutable (suit, rank) pair. Equality is value equality,
// so Card is safe to use as a map key.
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

// New builds a card from a suit and rank.
func New(suit Suit, rank Rank) Card {
	return Card{Suit: suit, Rank: rank}
}

// Matches reports whether two cards share a suit or a rank, the basic
// follow condition for a play.
func Matches(a, b Card) bool {
	return a.Suit == b.Suit || a.Rank == b.Rank
}

// BlackJack reports whether the card is a Jack of clubs or spades.
func (c Card) BlackJack() bool {
	return c.Rank == Jack && (c.Suit == Clubs || c.Suit == Spades)
}

// RedJack reports whether the card is a Jack of hearts or diamonds.
func (c Card) RedJack() bool {
	return c.Rank == Jack && (c.Suit == Hearts || c.Suit == Diamonds)
}

// Display returns the human label, e.g. "J♣" or "10♥".
func (c Card) Display() string {
	sym := "?"
	if int(c.Suit) < len(suitSymbols) {
		sym = suitSymbols[c.Suit]
	}
	return c.Rank.String() + sym
}

func (c Card) String() string {
	return c.Display()
}

// Encode packs the card into one byte: bits 7-6 carry the suit code,
// bits 5-0 carry the rank (2-14).
func (c Card) Encode() byte {
	return byte(c.Suit)<<6 | byte(c.Rank)&0x3F
}

// Decode unpacks a wire byte produced by Encode. Rank bits of 0, 1 or
// anything above 14 fail with ErrInvalidRank.
func Decode(b byte) (Card, error) {
	rank := b & 0x3F
	if rank < uint8(MinRank) || rank > uint8(MaxRank) {
		return Card{}, ErrInvalidRank{Rank: rank}
	}
	return Card{Suit: Suit(b >> 6), Rank: Rank(rank)}, nil
}

// Deck returns all 52 suit/rank combinations in a fixed order.
func Deck() []Card {
	deck := make([]Card, 0, 52)
	for suit := Hearts; suit <= Spades; suit++ {
		for rank := MinRank; rank <= MaxRank; rank++ {
			deck = append(deck, Card{Suit: suit, Rank: rank})
		}
	}
	return deck
}

// NewShuffledDeck builds a full deck and shuffles it with the given
// source. A nil rng falls back to the global source.
func NewShuffledDeck(rng *rand.Rand) []Card {
	deck := Deck()
	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}
