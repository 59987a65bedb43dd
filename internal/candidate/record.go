// Package candidate defines the canonical candidate record built from one
// resume, the normalizer that produces it and the JSON collection file the
// ingestion run writes.
package candidate

import "time"

// StatusNew is the workflow status given to freshly ingested candidates.
const StatusNew = "New"

// Record is the canonical representation of one resume.
type Record struct {
	Name                  string                `json:"name"`
	Email                 string                `json:"email"`
	SecondaryEmail        string                `json:"secondary_email"`
	PrimaryPhone          string                `json:"primary_phone"`
	SecondaryPhone        string                `json:"secondary_phone"`
	CVDirectoryLink       string                `json:"cv_directory_link"`
	UniqueID              string                `json:"unique_id"`
	Designation           string                `json:"designation"`
	Location              string                `json:"location"`
	PersonalDetails       PersonalDetails       `json:"personal_details"`
	SocialProfiles        SocialProfiles        `json:"social_profiles"`
	Education             []Education           `json:"education"`
	WorkExperience        []WorkExperience      `json:"work_experience"`
	TotalExperience       string                `json:"total_experience"`
	TechnicalSkills       []string              `json:"technical_skills"`
	SoftSkills            []string              `json:"soft_skills"`
	Languages             []string              `json:"languages"`
	Certifications        []Certification       `json:"certifications"`
	Projects              []Project             `json:"projects"`
	Keywords              []string              `json:"keywords"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
	Status                string                `json:"status"`
	CompatibilityAnalysis CompatibilityAnalysis `json:"compatibility_analysis"`
}

type PersonalDetails struct {
	DateOfBirth string `json:"date_of_birth"`
	Age         int    `json:"age"`
	Gender      string `json:"gender"`
}

type SocialProfiles struct {
	GitHub   string   `json:"github"`
	LinkedIn string   `json:"linkedin"`
	Twitter  string   `json:"twitter"`
	LeetCode string   `json:"leetcode"`
	Others   []string `json:"others"`
}

type Education struct {
	Degree         string `json:"degree" mapstructure:"degree"`
	Institution    string `json:"institution" mapstructure:"institution"`
	GraduationYear string `json:"graduation_year" mapstructure:"graduation_year"`
}

type WorkExperience struct {
	CompanyName      string   `json:"company_name" mapstructure:"company_name"`
	Position         string   `json:"position" mapstructure:"position"`
	Duration         string   `json:"duration" mapstructure:"duration"`
	Responsibilities []string `json:"responsibilities" mapstructure:"responsibilities"`
}

// Certification accepts both the plain string and the record form produced
// by the extraction model; a plain string becomes Name.
type Certification struct {
	Name   string `json:"name" mapstructure:"name"`
	Issuer string `json:"issuer" mapstructure:"issuer"`
	Date   string `json:"date" mapstructure:"date"`
}

type Project struct {
	Name         string   `json:"name" mapstructure:"name"`
	Description  string   `json:"description" mapstructure:"description"`
	Technologies []string `json:"technologies" mapstructure:"technologies"`
}

// CompatibilityAnalysis is reserved for job matching and is always zero here.
type CompatibilityAnalysis struct {
	OverallScore    float64         `json:"overall_score"`
	Analysis        Analysis        `json:"analysis"`
	DetailedScoring DetailedScoring `json:"detailed_scoring"`
}

type Analysis struct {
	Strengths        []string `json:"strengths"`
	Gaps             []string `json:"gaps"`
	MatchingPoints   []string `json:"matching_points"`
	ImprovementAreas []string `json:"improvement_areas"`
}

type DetailedScoring struct {
	SkillsMatch         float64 `json:"skills_match"`
	ExperienceRelevance float64 `json:"experience_relevance"`
	EducationFit        float64 `json:"education_fit"`
	OverallPotential    float64 `json:"overall_potential"`
}

// UniqueIDs returns the unique ids of records in collection order.
func UniqueIDs(records []Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.UniqueID)
	}
	return ids
}
