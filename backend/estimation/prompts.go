package estimation

import (
	"fmt"
	"strings"
)

// Prompts are written in Polish: the estimates target the Polish market and
// the documents being analyzed are Polish.

const characterizationSystem = `Jesteś doświadczonym polskim kosztorysantem budowlanym. Na podstawie dokumentacji projektowej ustalasz kluczowe parametry inwestycji.

Odpowiadasz po polsku, krótko i rzeczowo. Wszędzie, gdzie się da, podajesz liczby.`

// StaticCharacterization is used when the characterization call fails.
const StaticCharacterization = "Budynek wielorodzinny, szacowana powierzchnia 1200 m² PUM, 4 kondygnacje, standard podstawowy, technologia tradycyjna."

func characterizationPrompt(docs []Document, texts, drawings int, context string) string {
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.FileName
	}
	return fmt.Sprintf(`Przeanalizuj dokumentację budowlaną (%d plików: %d dokumentów tekstowych i %d rysunków).

Ustal:
1. TYP BUDYNKU (wielorodzinny, jednorodzinny, biurowy, hala, usługowy, inny)
2. POWIERZCHNIA UŻYTKOWA w m² PUM, szacunkowo na podstawie dokumentacji
3. POWIERZCHNIA ZABUDOWY w m², jeśli da się ją określić
4. LICZBA KONDYGNACJI (nadziemnych i podziemnych)
5. LOKALIZACJA, jeśli jest podana
6. STANDARD WYKOŃCZENIA (podstawowy, podwyższony, premium)
7. TECHNOLOGIA (tradycyjna, prefabrykowana, szkieletowa, mieszana)
8. ZAKRES BRANŻOWY widoczny w dokumentacji
9. MATERIAŁY wskazane w dokumentacji
10. ELEMENTY SPECJALNE (windy, garaż podziemny, fotowoltaika, pompy ciepła i podobne)

Pliki: %s

DOKUMENTACJA:
%s

Odpowiedz zwięźle, najwyżej 500 słów. Podawaj konkretne liczby.`,
		len(docs), texts, drawings, strings.Join(names, ", "), context)
}

const referencePrices = `
CENY REFERENCYJNE ROBÓT BUDOWLANYCH, POLSKA 2025/2026 (PLN netto):

KOSZT CAŁKOWITY wg typu budynku (PLN/m² PUM):
- Budynek wielorodzinny, standard: 4 500 - 6 500
- Budynek wielorodzinny, podwyższony: 6 500 - 9 000
- Budynek jednorodzinny: 4 000 - 7 000
- Budynek biurowy: 5 000 - 8 000
- Hala produkcyjna lub magazynowa: 2 500 - 4 500

CENY JEDNOSTKOWE:
Roboty ziemne:
- Wykopy fundamentowe mechaniczne: 45-85 PLN/m³
- Zasypki piaskiem z zagęszczeniem: 65-120 PLN/m³
- Wywóz gruntu: 35-65 PLN/m³

Fundamenty:
- Beton podkładowy C12/15: 350-450 PLN/m³
- Beton C25/30 w fundamentach: 550-750 PLN/m³
- Zbrojenie, stal BSt500S: 7-10 PLN/kg
- Izolacja przeciwwilgociowa: 35-65 PLN/m²
- Płyta fundamentowa żelbetowa 30 cm: 380-520 PLN/m²

Konstrukcja żelbetowa:
- Słupy: 1 800-2 800 PLN/m³
- Belki: 2 000-3 200 PLN/m³
- Stropy monolityczne 20-25 cm: 280-420 PLN/m²
- Stropy prefabrykowane (płyty HC): 250-380 PLN/m²
- Schody: 1 200-2 200 PLN/m²
- Ściany żelbetowe: 450-750 PLN/m²

Ściany murowane:
- Bloczki silikatowe 24 cm: 160-220 PLN/m²
- Beton komórkowy 24 cm: 170-240 PLN/m²
- Ściany działowe 12 cm: 100-160 PLN/m²

Dach:
- Więźba dachowa: 180-320 PLN/m²
- Dachówka ceramiczna z montażem: 160-280 PLN/m²
- Dach płaski, papa termozgrzewalna: 120-220 PLN/m²
- Obróbki blacharskie: 80-180 PLN/mb
- Rynny i rury spustowe: 90-180 PLN/mb

Stolarka:
- Okna PCV trzyszybowe: 800-1 500 PLN/m²
- Okna aluminiowe: 1 200-2 500 PLN/m²
- Drzwi wejściowe aluminiowe: 4 500-12 000 PLN/szt.
- Drzwi wewnętrzne z ościeżnicą: 800-2 200 PLN/szt.
- Brama garażowa segmentowa: 4 500-9 000 PLN/szt.

Izolacja termiczna:
- ETICS, styropian 15 cm: 140-220 PLN/m²
- ETICS, styropian 20 cm: 170-260 PLN/m²
- Wełna mineralna 20 cm: 80-140 PLN/m²
- XPS na fundamenty: 90-160 PLN/m²

Wykończenie:
- Tynki gipsowe maszynowe: 45-70 PLN/m²
- Gładź gipsowa: 25-45 PLN/m²
- Malowanie dwukrotne: 18-35 PLN/m²
- Płytki ceramiczne na podłodze: 120-250 PLN/m²
- Płytki ceramiczne na ścianach łazienek: 140-280 PLN/m²
- Panele podłogowe: 80-160 PLN/m²
- Wylewka betonowa: 45-75 PLN/m²

Instalacje (za m² PUM):
- Elektryczna kompletna: 180-350 PLN/m²
- Wod-kan kompletna: 120-250 PLN/m²
- Centralne ogrzewanie: 150-300 PLN/m²
- Wentylacja mechaniczna: 100-250 PLN/m²
- Fotowoltaika: 3 500-5 500 PLN/kWp
- Pompa ciepła powietrzna: 35 000-65 000 PLN/kpl.

Roboty zewnętrzne:
- Elewacja tynkowa kompletna: 180-320 PLN/m²
- Elewacja klinkierowa: 350-550 PLN/m²
- Balkony i tarasy: 800-1 500 PLN/m²
- Parking naziemny: 150-350 PLN/m²
- Drogi wewnętrzne i chodniki: 120-280 PLN/m²

Prefabrykaty betonowe:
- Ściany prefabrykowane: 400-700 PLN/m²
- Płyty stropowe HC sprężone: 250-400 PLN/m²
- Słupy prefabrykowane: 1 500-3 000 PLN/szt.
- Belki prefabrykowane: 300-600 PLN/mb
- Schody prefabrykowane: 2 000-5 000 PLN/bieg
`

const branchTaxonomy = `
STRUKTURA BRANŻOWA KOSZTORYSU (kolejność obowiązująca):

BRANŻA OGÓLNOBUDOWLANA (branch "ogolnobudowlana"):
- Roboty ziemne i przygotowawcze
- Fundamenty
- Konstrukcja żelbetowa (słupy, belki, stropy, schody)
- Ściany nośne i działowe
- Dach / Stropodach
- Stolarka okienna i drzwiowa
- Izolacja termiczna i przeciwwilgociowa
- Tynki i okładziny wewnętrzne
- Posadzki i podłogi
- Elewacja

BRANŻA SANITARNA (branch "sanitarna"):
- Instalacja wod-kan
- Instalacja CO / ogrzewanie
- Wentylacja i klimatyzacja
- Instalacja gazowa (jeśli dotyczy)

BRANŻA ELEKTRYCZNA (branch "elektryczna"):
- Instalacja elektryczna i oświetleniowa
- Instalacja niskoprądowa (teletechniczna)

ROBOTY ZEWNĘTRZNE (branch "zewnetrzna"):
- Zagospodarowanie terenu
- Przyłącza mediów
- Drogi, parkingi, chodniki
- Zieleń i mała architektura
`

const costBands = `
KONTROLA SUMY KOSZTORYSU (PLN netto):
- Budynek wielorodzinny ok. 1500 m²: 6,5 - 10 mln
- Budynek wielorodzinny ok. 3000 m²: 13 - 20 mln
- Budynek jednorodzinny ok. 150 m²: 600 tys. - 1,1 mln
- Hala ok. 2000 m²: 5 - 9 mln
Jeśli suma wypada poza przedziałem właściwym dla tego budynku, popraw ceny lub ilości.
`

const draftRole = "Jesteś doświadczonym polskim kosztorysantem budowlanym. Na podstawie charakterystyki budynku i dokumentacji przygotowujesz pozycje kosztorysu."

func draftSystem(characterization string) string {
	return draftRole + `

CHARAKTERYSTYKA BUDYNKU:
` + characterization + `
` + referencePrices + `
` + branchTaxonomy + `
ZASADY:
1. Twórz pozycje wyłącznie na podstawie tego, co widać w przekazanej dokumentacji.
2. Stosuj realistyczne ceny rynkowe 2025/2026 zgodne z referencją.
3. Ilości mają odpowiadać rzeczywistym wymiarom budynku.
4. Każda pozycja ma pola: category, description, unit, quantity, unitPrice, branch, confidence.
5. branch to jedno z: "ogolnobudowlana", "sanitarna", "elektryczna", "zewnetrzna".
6. confidence to jedno z:
   "high" gdy ilość i cena wynikają wprost z dokumentacji,
   "medium" gdy ilość oszacowano z parametrów budynku, a cenę z referencji,
   "low" gdy pozycję uzupełniono z doświadczenia bez danych w dokumentacji.

Zwróć wyłącznie poprawny JSON:
{"items":[{"category":"...","description":"...","unit":"m²","quantity":100,"unitPrice":250,"branch":"ogolnobudowlana","confidence":"medium","sourceFile":"..."}]}`
}

func perFilePrompt(fileName, content string) string {
	return fmt.Sprintf("Plik: %s\n\nZawartość:\n%s\n\nPrzygotuj pozycje kosztorysu na podstawie tego pliku.", fileName, content)
}

func batchPrompt(fileCount int, context string) string {
	return fmt.Sprintf(`Dokumentacja (%d plików):
%s

Przygotuj pełny kosztorys (40-60 pozycji) obejmujący wszystkie branże widoczne w dokumentacji. W polu "sourceFile" każdej pozycji podaj nazwę pliku, z którego pozycja pochodzi.`, fileCount, context)
}

const consolidationRole = "Jesteś doświadczonym polskim kosztorysantem budowlanym. Scalasz i weryfikujesz robocze pozycje kosztorysu."

func consolidationSystem(characterization string) string {
	return consolidationRole + `

ZADANIA:
1. Scal powtarzające się pozycje (te same roboty z różnych plików to jedna pozycja z sumą ilości).
2. Usuń dokładne duplikaty.
3. Uzupełnij brakujące kategorie: kosztorys musi obejmować każdą branżę z poniższej struktury.
4. Sprawdź, czy ceny i ilości są realistyczne dla tego budynku.
5. Uporządkuj pozycje według struktury branżowej.

CHARAKTERYSTYKA BUDYNKU:
` + characterization + `
` + branchTaxonomy + `
` + referencePrices + `
` + costBands + `
Oczekiwane co najmniej 30 pozycji, najlepiej 40-60.

Każda pozycja wejściowa ma pole "id". W polu "sources" pozycji wynikowej podaj listę id pozycji wejściowych, z których powstała (pusta lista dla pozycji dodanych od zera).
Zachowaj confidence pozycji wejściowych. Przy scalaniu pozycji o różnym confidence użyj niższego.

Zwróć wyłącznie poprawny JSON:
{"items":[{"branch":"ogolnobudowlana","category":"...","description":"...","unit":"m²","quantity":100,"unitPrice":250,"sourceFile":"...","confidence":"medium","sources":[1,4]}],"summary":{"totalNetto":0,"area":0,"costPerM2":0,"buildingType":"","notes":""},"mergeLog":["Scalono: X + Y -> Z"]}`
}

func consolidationPrompt(draftCount, fileCount int, draftsJSON string, omitted int) string {
	prompt := fmt.Sprintf("Pozycje do scalenia i weryfikacji (%d pozycji z %d plików):\n\n%s", draftCount, fileCount, draftsJSON)
	if omitted > 0 {
		prompt += fmt.Sprintf("\n\n(pominięto %d pozycji z powodu limitu długości)", omitted)
	}
	return prompt
}
