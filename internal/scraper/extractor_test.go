package scraper

import "testing"

const searchPage = `<html><body>
<section>
  <div class="a-card">
    <a class="a-card__title" href="/a/show/681234567">2-комнатная квартира, 54 м²</a>
    <div class="a-card__price">250 000 〒</div>
    <div class="a-card__subtitle"><a>Esentai City</a></div>
    <div class="a-card__text-preview">Сдаётся от хозяина, без посредников</div>
  </div>
  <div class="a-card">
    <a class="a-card__title" href="/a/show/681234999-2-komn">1-комнатная квартира</a>
    <div class="a-card__price">   180 000 〒 </div>
  </div>
  <div class="a-card">
    <a class="a-card__title" href="/a/show/nope">Без цены</a>
  </div>
  <div class="a-card">
    <div class="a-card__price">100 000 〒</div>
  </div>
  <div class="a-card">
    <a class="a-card__title" href="/complex/item">Квартира в ЖК</a>
    <div class="a-card__price">300 000 〒</div>
    <span>Собственник</span>
  </div>
</section>
</body></html>`

func TestKrishaExtractor_Extract(t *testing.T) {
	e := NewKrishaExtractor("https://krisha.kz/")
	got, err := e.Extract([]byte(searchPage))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 listings, got %d: %+v", len(got), got)
	}

	first := got[0]
	if first.ID != "681234567" || first.URL != "https://krisha.kz/a/show/681234567" {
		t.Fatalf("unexpected first listing: %+v", first)
	}
	if first.Price != "250 000 〒" || first.Title != "2-комнатная квартира, 54 м²" {
		t.Fatalf("unexpected text fields: %+v", first)
	}
	if !first.FromOwner || first.ResidentialComplex != "Esentai City" || first.Description == "" {
		t.Fatalf("unexpected optional fields: %+v", first)
	}

	if got[1].ID != "681234999" || got[1].FromOwner || got[1].Price != "180 000 〒" {
		t.Fatalf("unexpected second listing: %+v", got[1])
	}

	if got[2].ID != "https://krisha.kz/complex/item" {
		t.Fatalf("expected url fallback id, got %q", got[2].ID)
	}
	if !got[2].FromOwner {
		t.Fatalf("expected owner flag from card text")
	}
}

func TestKrishaExtractor_EmptyPage(t *testing.T) {
	got, err := NewKrishaExtractor("https://krisha.kz").Extract([]byte("<html></html>"))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no listings, got %d", len(got))
	}
}

func TestListingID(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{"https://krisha.kz/a/show/123", "123"},
		{"https://krisha.kz/a/show/123/", "123"},
		{"https://krisha.kz/a/show/123-abc?x=1", "123"},
		{"https://krisha.kz/a/show/abc", "https://krisha.kz/a/show/abc"},
		{"https://krisha.kz/a/show/12a", "https://krisha.kz/a/show/12a"},
	}
	for _, tt := range tests {
		if got := ListingID(tt.link); got != tt.want {
			t.Errorf("ListingID(%q) = %q, want %q", tt.link, got, tt.want)
		}
	}
}
