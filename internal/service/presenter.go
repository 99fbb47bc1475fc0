package service

import (
	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/Dan9191/bank-cards/internal/utils"
)

// Presenter turns stored cards into views
type Presenter struct {
	cipher utils.CardCipher
}

// NewPresenter creates a presenter decrypting with cipher
func NewPresenter(cipher utils.CardCipher) *Presenter {
	return &Presenter{cipher: cipher}
}

// View decrypts the card number and returns it masked unless raw is set
func (p *Presenter) View(card *models.Card, ownerName string, raw bool) (models.CardView, error) {
	number, err := p.cipher.Decrypt(card.EncryptedNumber)
	if err != nil {
		return models.CardView{}, err
	}
	if !raw {
		number = utils.MaskCardNumber(number)
	}
	return newCardView(card, ownerName, number), nil
}

// MaskedNumber returns the masked card number
func (p *Presenter) MaskedNumber(card *models.Card) (string, error) {
	number, err := p.cipher.Decrypt(card.EncryptedNumber)
	if err != nil {
		return "", err
	}
	return utils.MaskCardNumber(number), nil
}

func newCardView(card *models.Card, ownerName, number string) models.CardView {
	return models.CardView{
		ID:             card.ID,
		OwnerName:      ownerName,
		CardNumber:     number,
		ExpirationDate: card.ExpirationDate.Format("2006-01-02"),
		Status:         card.Status,
		Balance:        card.Balance,
	}
}
