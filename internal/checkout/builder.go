package checkout

import (
	"reflect"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// Source is anything that can list the visible line items of a live cart.
type Source interface {
	Items() []domain.LineItem
}

// Builder freezes a cart into a snapshot and turns snapshot plus form into an order
// submission. Amounts always come from the snapshot.
type Builder struct {
	validate *validatorv10.Validate
	nowFunc  func() time.Time
}

func NewBuilder() *Builder {
	v := validatorv10.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Builder{
		validate: v,
		nowFunc:  time.Now,
	}
}

// BuildSnapshot copies the cart's visible items by value and computes subtotal, tax and
// total once.
func (b *Builder) BuildSnapshot(src Source) (domain.CartSnapshot, error) {
	items := src.Items()
	if len(items) == 0 {
		return domain.CartSnapshot{}, domain.ErrEmptyCart
	}

	frozen := make([]domain.LineItem, len(items))
	copy(frozen, items)

	subtotal := domain.Subtotal(frozen)
	tax := domain.NewPrice(subtotal.Mul(domain.TaxRate).Round(2))

	return domain.CartSnapshot{
		CheckoutID: uuid.NewString(),
		Items:      frozen,
		Subtotal:   subtotal,
		Tax:        tax,
		Total:      subtotal.Plus(tax),
		Currency:   domain.Currency,
		CapturedAt: b.nowFunc(),
	}, nil
}

// ValidateForm checks that every required shipping field is filled in. The returned
// *domain.IncompleteFormError lists the missing fields in form order.
func (b *Builder) ValidateForm(form domain.CheckoutForm) error {
	form = normalize(form)
	err := b.validate.Struct(form)
	if err == nil {
		return nil
	}
	ve, ok := err.(validatorv10.ValidationErrors)
	if !ok {
		return err
	}
	missing := make([]string, 0, len(ve))
	for _, fe := range ve {
		missing = append(missing, fe.Field())
	}
	return &domain.IncompleteFormError{Fields: missing}
}

// Assemble validates the form and builds the submission for userID.
func (b *Builder) Assemble(snap domain.CartSnapshot, form domain.CheckoutForm, userID string) (domain.OrderSubmission, error) {
	if len(snap.Items) == 0 {
		return domain.OrderSubmission{}, domain.ErrEmptyCart
	}
	if err := b.ValidateForm(form); err != nil {
		return domain.OrderSubmission{}, err
	}
	form = normalize(form)

	items := make([]domain.SubmissionItem, 0, len(snap.Items))
	for _, it := range snap.Items {
		color := it.Color
		if color == "" {
			color = it.VariantLabel
		}
		items = append(items, domain.SubmissionItem{
			CartID:    it.CartID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			Price:     it.UnitPrice,
			Color:     color,
			Size:      it.Size,
		})
	}

	return domain.OrderSubmission{
		UserID:        userID,
		CartItems:     items,
		FirstName:     form.FirstName,
		LastName:      form.LastName,
		Email:         form.Email,
		PhoneNumber:   form.PhoneNumber,
		WaistSize:     form.WaistSize,
		ThighsSize:    form.ThighsSize,
		FullLength:    form.FullLength,
		StreetAddress: form.StreetAddress,
		Apartment:     form.Apartment,
		City:          form.City,
		State:         form.State,
		ZipCode:       form.ZipCode,
		Country:       form.Country,
		PaymentMethod: form.PaymentMethod,
		Subtotal:      snap.Subtotal,
		Tax:           snap.Tax,
		Total:         snap.Total,
	}, nil
}

func normalize(f domain.CheckoutForm) domain.CheckoutForm {
	for _, p := range []*string{
		&f.FirstName, &f.LastName, &f.Email, &f.PhoneNumber,
		&f.WaistSize, &f.ThighsSize, &f.FullLength,
		&f.StreetAddress, &f.Apartment, &f.City, &f.State, &f.ZipCode, &f.Country,
	} {
		*p = strings.TrimSpace(*p)
	}
	f.PaymentMethod = domain.PaymentMethod(strings.TrimSpace(string(f.PaymentMethod)))
	if f.Country == "" {
		f.Country = domain.DefaultCountry
	}
	return f
}
