package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"trinetra/internal/verification"
	"trinetra/pkg/types"
)

type demoCandidate struct {
	Name    string
	HouseNo string
	Area    string
	City    string
	State   string
	ZipCode string
}

var demoCandidates = []demoCandidate{
	{Name: "Asha Patel", HouseNo: "12", Area: "Navrangpura", City: "Ahmedabad", State: "Gujarat", ZipCode: "380009"},
	{Name: "Rohan Mehta", HouseNo: "4B", Area: "Koregaon Park", City: "Pune", State: "Maharashtra", ZipCode: "411001"},
	{Name: "Kavya Iyer", HouseNo: "221", Area: "Indiranagar", City: "Bengaluru", State: "Karnataka", ZipCode: "560038"},
	{Name: "Arjun Singh", HouseNo: "9", Area: "Sector 17", City: "Chandigarh", State: "Chandigarh", ZipCode: "160017"},
	{Name: "Nisha Reddy", HouseNo: "301", Area: "Banjara Hills", City: "Hyderabad", State: "Telangana", ZipCode: "500034"},
	{Name: "Imran Khan", HouseNo: "56", Area: "Salt Lake", City: "Kolkata", State: "West Bengal", ZipCode: "700091"},
}

type weightedFormType struct {
	FormType types.FormType
	Weight   int
}

var weightedFormTypes = []weightedFormType{
	{FormType: types.FormTypeAVF, Weight: 60},
	{FormType: types.FormTypeBGV, Weight: 40},
}

// SeedDemoLinks creates count unopened form links owned by owner, for local
// walkthroughs of the respondent flows. It returns the new tokens.
func SeedDemoLinks(ctx context.Context, svc *verification.Service, owner *types.User, count int) ([]string, error) {
	if count <= 0 {
		fmt.Println("Skipping demo links seed because count <= 0")
		return nil, nil
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	tokens := make([]string, 0, count)
	for i := 0; i < count; i++ {
		c := demoCandidates[rng.Intn(len(demoCandidates))]

		link, err := svc.CreateLink(ctx, owner, types.CreateFormLinkInput{
			FormType:      string(pickWeightedFormType(rng)),
			CandidateName: c.Name,
			HouseNo:       c.HouseNo,
			Area:          c.Area,
			City:          c.City,
			State:         c.State,
			ZipCode:       c.ZipCode,
		})
		if err != nil {
			return tokens, fmt.Errorf("failed to create demo link %d: %w", i, err)
		}

		tokens = append(tokens, link.Token)
	}

	fmt.Printf("Demo links seeded: %d created\n", len(tokens))
	return tokens, nil
}

func pickWeightedFormType(rng *rand.Rand) types.FormType {
	total := 0
	for _, item := range weightedFormTypes {
		total += item.Weight
	}

	roll := rng.Intn(total)
	running := 0
	for _, item := range weightedFormTypes {
		running += item.Weight
		if roll < running {
			return item.FormType
		}
	}

	return types.FormTypeAVF
}
